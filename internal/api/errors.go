package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

// statusOf maps an error kind to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrExpiredCycle):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// message renders err for the response body without the operation name.
func message(err error) string {
	var op *types.OpError
	if errors.As(err, &op) {
		if op.Err == nil {
			return op.Kind.Error()
		}
		return fmt.Sprintf("%v: %v", op.Kind, op.Err)
	}
	return err.Error()
}

// fail aborts the request with the status and message for err. Server
// errors are logged and their cause hidden from the client.
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusOf(err)
	msg := message(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Request.Method, "route", c.FullPath(), "error", err)
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// badRequest aborts with 400 for a body that could not be decoded.
func (s *Server) badRequest(c *gin.Context, err error) {
	s.fail(c, types.Errorf(types.ErrValidation, "decode request", "%v", err))
}
