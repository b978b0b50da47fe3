package bizerror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"memberflow/misc"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

func ErrorHandling() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handle(c)
		c.Next()
	}
}

func handle(c *gin.Context) {
	if ret := recover(); ret != nil {
		err, ok := ret.(error)
		if !ok {
			err = fmt.Errorf("%v", ret)
		}
		HandleError(c, err)
	} else {
		if err := c.Errors.Last(); err != nil {
			HandleError(c, err)
		}
	}
}

func HandleError(c *gin.Context, err error) {
	logrus.Error(err)

	genericErr := err
	var ginErr *gin.Error
	if errors.As(err, &ginErr) {
		genericErr = ginErr.Err
	}

	if bizErr, ok := genericErr.(BizError); ok {
		respond := bizErr.Respond()
		c.JSON(respond.Status, &misc.ErrorBody{Code: respond.Code, Message: respond.Message, Data: respond.Data})
		c.Abort()
		return
	}

	// bad request: io.EOF (no body)
	if errors.Is(genericErr, io.EOF) {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "bad_request.body_not_found", Message: "body not found"})
		c.Abort()
		return
	}
	if syntaxErr, ok := genericErr.(*json.SyntaxError); ok {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "bad_request.invalid_body_format", Message: "invalid body format", Data: syntaxErr.Error()})
		c.Abort()
		return
	}
	if validationErr, ok := genericErr.(validator.ValidationErrors); ok {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "bad_request.validation_failed", Message: "validation failed", Data: validationErr.Error()})
		c.Abort()
		return
	}

	if errors.Is(genericErr, ErrUnauthenticated) {
		c.JSON(http.StatusUnauthorized, &misc.ErrorBody{Code: "common.unauthenticated", Message: "unauthenticated"})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrForbidden) {
		c.JSON(http.StatusForbidden, &misc.ErrorBody{Code: "security.forbidden", Message: "access forbidden"})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrSeparationOfDuties) {
		c.JSON(http.StatusForbidden, &misc.ErrorBody{Code: "review.separation_of_duties", Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrTerminalState) {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "review.terminal_state", Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrValidationFailed) {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "review.validation_failed", Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrConcurrentModification) {
		c.JSON(http.StatusConflict, &misc.ErrorBody{Code: "review.concurrent_modification", Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrStoreTimeout) || errors.Is(genericErr, context.DeadlineExceeded) {
		c.JSON(http.StatusGatewayTimeout, &misc.ErrorBody{Code: "review.store_timeout", Message: ErrStoreTimeout.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrAuditWriteFailed) {
		c.JSON(http.StatusInternalServerError, &misc.ErrorBody{Code: "review.audit_write_failed", Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, &misc.ErrorBody{Code: "common.record_not_found", Message: "record not found"})
		c.Abort()
		return
	}

	c.JSON(http.StatusInternalServerError, &misc.ErrorBody{Code: "common.internal_server_error", Message: err.Error()})
	c.Abort()
}
