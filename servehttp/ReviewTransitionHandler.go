package servehttp

import (
	"memberflow/bizerror"
	"memberflow/domain"
	"memberflow/domain/review"
	"memberflow/session"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterReviewTransitionsHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/review-transitions", middleWares...)

	handler := &reviewTransitionHandler{validator: validator.New()}
	g.POST("", handler.handleCreate)
	g.GET("", handler.handleQuerySchemes)
}

type transitionSchemeQuery struct {
	FromStage string `form:"fromStage"`
	ToStage   string `form:"toStage"`
}

// handleQuerySchemes lists the transitions of the review machine matching
// the given stage filters, so clients know which actions a record offers.
func (h *reviewTransitionHandler) handleQuerySchemes(c *gin.Context) {
	query := transitionSchemeQuery{}
	if err := c.ShouldBindQuery(&query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	c.JSON(http.StatusOK, review.ReviewMachine.AvailableTransitions(query.FromStage, query.ToStage))
}

type reviewTransitionHandler struct {
	validator *validator.Validate
}

func (h *reviewTransitionHandler) handleCreate(c *gin.Context) {
	creation := domain.ReviewTransitionBrief{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	if err = h.validator.Struct(creation); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	transition, err := review.RequestTransitionFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, transition)
}
