package servehttp

import (
	"memberflow/domain/review"
	"memberflow/session"
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterReviewStatsHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/review-stats", middleWares...)
	g.GET("", handleQueryReviewStats)
}

func handleQueryReviewStats(c *gin.Context) {
	stats, err := review.QueryReviewStatsFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, stats)
}
