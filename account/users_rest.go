package account

import (
	"memberflow/bizerror"
	"memberflow/session"
	"net/http"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

func RegisterUsersRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/users", middleWares...)
	g.GET("", handleQueryUsers)
	g.POST("", handleCreateUser)
	g.PUT(":id", handleUpdateUser)

	b := r.Group("/v1/user-role-bindings", middleWares...)
	b.POST("", handleAssignRole)
	b.DELETE("", handleUnassignRole)

	s := r.Group("/v1/session-users", middleWares...)
	s.PUT("basic-auths", handleUpdateBasicAuth)
}

func handleQueryUsers(c *gin.Context) {
	users, err := QueryUsers(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, users)
}

func handleCreateUser(c *gin.Context) {
	creation := UserCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	user, err := CreateUser(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, user)
}

func handleUpdateUser(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	updating := UserUpdation{}
	if err := c.ShouldBindBodyWith(&updating, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := UpdateUser(id, &updating, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.AbortWithStatus(http.StatusNoContent)
}

func handleAssignRole(c *gin.Context) {
	assignment := RoleAssignment{}
	if err := c.ShouldBindBodyWith(&assignment, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	roleBinding, err := AssignRole(&assignment, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, roleBinding)
}

func handleUnassignRole(c *gin.Context) {
	assignment := RoleAssignment{}
	if err := c.ShouldBindBodyWith(&assignment, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := UnassignRole(&assignment, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.AbortWithStatus(http.StatusNoContent)
}

func handleUpdateBasicAuth(c *gin.Context) {
	updating := BasicAuthUpdating{}
	if err := c.ShouldBindBodyWith(&updating, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := UpdateBasicAuthSecret(&updating, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.AbortWithStatus(http.StatusNoContent)
}
