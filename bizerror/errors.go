package bizerror

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidPassword = errors.New("invalid password")

	ErrTerminalState      = errors.New("record is in a terminal stage")
	ErrSeparationOfDuties = errors.New("separation of duties violation")
	ErrValidationFailed   = errors.New("transition precondition not met")
	// retry-safe: callers should re-read the record and reapply the request
	ErrConcurrentModification = errors.New("record has been modified concurrently")
	ErrStoreTimeout           = errors.New("store operation timed out")
	ErrAuditWriteFailed       = errors.New("audit write failed")
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := "common.bad_param"
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message, Data: nil}
}

// ErrInvalidTransition reports a (fromStage, toStage) pair which is absent
// from the transition table.
type ErrInvalidTransition struct {
	FromStage string
	ToStage   string
}

func (e *ErrInvalidTransition) Error() string {
	return "transition from " + e.FromStage + " to " + e.ToStage + " is not acceptable"
}
func (e *ErrInvalidTransition) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "review.invalid_transition", Message: e.Error(),
		Data: map[string]string{"fromStage": e.FromStage, "toStage": e.ToStage}}
}
