package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"release-registry/storage"
)

// httpStatus maps storage error codes onto HTTP status codes.
func httpStatus(err error) int {
	switch storage.CodeOf(err) {
	case storage.ErrNotFound:
		return http.StatusNotFound
	case storage.ErrAlreadyExists:
		return http.StatusConflict
	case storage.ErrInvalid:
		return http.StatusBadRequest
	case storage.ErrTooLarge:
		return http.StatusRequestEntityTooLarge
	case storage.ErrExpired:
		return http.StatusUnauthorized
	case storage.ErrConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error as a JSON body with the mapped status. Backend
// failures are logged; client-caused ones are not.
func fail(c *gin.Context, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("path", c.Request.URL.Path).
			Msg("Request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func failInvalid(c *gin.Context, format string, args ...any) {
	fail(c, storage.NewError(storage.ErrInvalid, format, args...))
}
