package servehttp

import (
	"memberflow/bizerror"
	"memberflow/domain"
	"memberflow/domain/member"
	"memberflow/domain/review"
	"memberflow/session"
	"net/http"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

func RegisterMembershipsHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/memberships", middleWares...)
	g.POST("", handleCreateMembership)
	g.GET("", handleQueryMemberships)
	g.GET(":id", handleDetailMembership)
	g.GET(":id/audit-trail", handleGetAuditTrail)
}

func handleCreateMembership(c *gin.Context) {
	creation := domain.MembershipCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := member.CreateMembershipFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, record)
}

func handleQueryMemberships(c *gin.Context) {
	query := domain.MembershipQuery{}
	if err := c.ShouldBindQuery(&query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	records, err := member.QueryMembershipsFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, records)
}

func handleDetailMembership(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := member.DetailMembershipFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, record)
}

func handleGetAuditTrail(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	trail, err := review.GetAuditTrailFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, trail)
}
