package testinfra

import (
	"context"
	"memberflow/session"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BuildSecCtx builds a signed-in session for tests
func BuildSecCtx(uid types.ID, perms ...string) *session.Session {
	return &session.Session{
		Context:     context.Background(),
		Token:       uuid.New().String(),
		Identity:    session.Identity{ID: uid, Name: "user_" + uid.String()},
		Perms:       perms,
		SigningTime: time.Now(),
	}
}

func ExecuteRequest(req *http.Request, router *gin.Engine) (status int, body string, header http.Header) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code, w.Body.String(), w.Header()
}
