package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/studyshelf/studyshelf/internal/fault"
)

// errorBody is the wire shape for every failure.
type errorBody struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

func statusFor(class fault.Class) int {
	switch class {
	case fault.ClassValidation:
		return http.StatusBadRequest
	case fault.ClassUnauthorized:
		return http.StatusUnauthorized
	case fault.ClassForbidden:
		return http.StatusForbidden
	case fault.ClassNotFound:
		return http.StatusNotFound
	case fault.ClassConflict:
		return http.StatusConflict
	case fault.ClassUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a fault as {message, errorCode}. Anything that is
// not a fault gets a generic internal error; backend detail never
// reaches the body.
func (h *httpHandler) writeError(c *gin.Context, err error) {
	if f, ok := fault.From(err); ok {
		c.JSON(statusFor(f.Class), errorBody{Message: f.Message, ErrorCode: f.Code})
		return
	}
	h.logger.Error("unclassified handler error", zap.Error(err), zap.String("path", c.FullPath()))
	c.JSON(http.StatusInternalServerError, errorBody{Message: "internal error", ErrorCode: "InternalError"})
}

func (h *httpHandler) abortError(c *gin.Context, err error) {
	if f, ok := fault.From(err); ok {
		c.AbortWithStatusJSON(statusFor(f.Class), errorBody{Message: f.Message, ErrorCode: f.Code})
		return
	}
	h.logger.Error("unclassified middleware error", zap.Error(err), zap.String("path", c.FullPath()))
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Message: "internal error", ErrorCode: "InternalError"})
}
