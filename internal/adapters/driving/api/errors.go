package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

type statusError struct {
	status int
	msg    string
}

func (e statusError) Error() string { return e.msg }

func errUnauthorized(msg string) error {
	return statusError{status: http.StatusUnauthorized, msg: msg}
}

func errBadRequest(msg string) error {
	return statusError{status: http.StatusBadRequest, msg: msg}
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	var se statusError
	switch {
	case errors.As(err, &se):
		return se.status
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrLLMUnavailable),
		errors.Is(err, domain.ErrVectorIndexUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), ErrorResponse{Error: err.Error()})
}
