package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"exchangelink/internal/errs"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor maps an error kind to its HTTP status, code and the message
// shown to the client. Only the first classified error in the chain is
// rendered; errors that carry no kind are internal and their text is hidden.
func statusFor(err error) (int, string, string) {
	var classified *errs.Error
	if !errors.As(err, &classified) {
		return http.StatusInternalServerError, "internal_error", "internal error"
	}
	msg := errs.Sanitize(classified.Error(), errs.DefaultMaxMessage)
	switch {
	case errors.Is(classified, errs.ErrValidation):
		return http.StatusBadRequest, "validation_error", msg
	case errors.Is(classified, errs.ErrNotFound):
		return http.StatusNotFound, "not_found", msg
	case errors.Is(classified, errs.ErrPoolTimeout):
		return http.StatusServiceUnavailable, "pool_timeout", msg
	case errors.Is(classified, errs.ErrAuthentication):
		return http.StatusBadGateway, "authentication_error", msg
	case errors.Is(classified, errs.ErrFormat):
		return http.StatusBadGateway, "format_error", msg
	default:
		return http.StatusBadGateway, "connectivity_failure", msg
	}
}

func writeError(c *gin.Context, err error) {
	status, code, msg := statusFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     code,
		Message:   msg,
		RequestID: c.GetString(keyRequestID),
	})
}
