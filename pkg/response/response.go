package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "eventsponsor.messaging/pkg/errors"
)

// Response is the envelope of every API reply.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Success writes data with code 0.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    appErrors.CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// ErrorWithMsg writes a custom error message under code.
func ErrorWithMsg(c *gin.Context, code int, message string) {
	c.JSON(statusFor(code), Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// ErrorFromAppError writes the code and message carried by err.
func ErrorFromAppError(c *gin.Context, err error) {
	code := appErrors.GetCode(err)
	c.JSON(statusFor(code), Response{
		Code:    code,
		Message: appErrors.GetMessage(err),
		Data:    nil,
	})
}

// Unauthorized aborts with a token error.
func Unauthorized(c *gin.Context, err *appErrors.AppError) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
		Code:    err.Code,
		Message: err.Message,
		Data:    nil,
	})
}

// TooManyRequests aborts with 429.
func TooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{
		Code:    appErrors.CodeTooManyRequests,
		Message: appErrors.ErrTooManyRequests.Message,
		Data:    nil,
	})
}

func statusFor(code int) int {
	switch code {
	case appErrors.CodeUnauthenticated, appErrors.CodeTokenInvalid, appErrors.CodeTokenExpired:
		return http.StatusUnauthorized
	case appErrors.CodeInvalidParams, appErrors.CodeInvalidParticipants:
		return http.StatusBadRequest
	case appErrors.CodeChatNotFound, appErrors.CodeUserNotFound:
		return http.StatusNotFound
	case appErrors.CodeNotParticipant:
		return http.StatusForbidden
	case appErrors.CodeTooManyRequests:
		return http.StatusTooManyRequests
	case appErrors.CodeDirectoryUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
