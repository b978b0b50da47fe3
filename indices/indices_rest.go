package indices

import (
	"memberflow/account"
	"memberflow/bizerror"
	"memberflow/session"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

var (
	PathIndexRequests = "/v1/index-requests"
	PathMemberDocs    = "/v1/member-docs"

	// full resync is expensive; one scheduling request per interval
	fullSyncLimiter = rate.NewLimiter(rate.Every(10*time.Second), 1)
)

func RegisterIndicesRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathIndexRequests, middleWares...)
	g.POST("", handleIndexRequest)

	d := r.Group(PathMemberDocs, middleWares...)
	d.GET("", handleQueryMemberDocs)
}

func handleIndexRequest(c *gin.Context) {
	if !fullSyncLimiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"result": "request rate limited"})
		return
	}

	success, err := ScheduleNewSyncRunFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"result": success})
}

func handleQueryMemberDocs(c *gin.Context) {
	sec := session.ExtractSessionFromGinContext(c)
	if !sec.Perms.HasAnyRole(account.FinancialReviewerPermission.ID,
		account.MembershipApproverPermission.ID, account.SystemAdminPermission.ID) {
		panic(bizerror.ErrForbidden)
	}

	query := MemberDocumentQuery{}
	if err := c.ShouldBindQuery(&query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	docs, err := SearchMemberDocumentsFunc(query)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, docs)
}
