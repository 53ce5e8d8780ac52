// Package httperr maps domain errors to HTTP responses.
package httperr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liliang-cn/askdesk/internal/domain"
)

// Status returns the HTTP status code for err
func Status(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrGenerationFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Write aborts the request with the status and message of err
func Write(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(Status(err), gin.H{"error": err.Error()})
}

// BadRequest aborts the request for a malformed body
func BadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
