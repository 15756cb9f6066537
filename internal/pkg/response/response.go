package response

import (
	"net/http"

	"agora_go/internal/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// Response Standard API Response
type Response struct {
	Code int         `json:"code"`
	Data interface{} `json:"data,omitempty"`
	Msg  string      `json:"msg,omitempty"`
}

// Success Success response
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: apperr.CodeSuccess,
		Data: data,
		Msg:  "success",
	})
}

// SuccessWithMsg Success with message
func SuccessWithMsg(c *gin.Context, data interface{}, msg string) {
	c.JSON(http.StatusOK, Response{
		Code: apperr.CodeSuccess,
		Data: data,
		Msg:  msg,
	})
}

// Warning No-op outcome reported with a warning message, HTTP 200
func Warning(c *gin.Context, err error) {
	c.JSON(http.StatusOK, Response{
		Code: apperr.CodeFor(err),
		Msg:  err.Error(),
	})
}

// Fail Fail response with error
func Fail(c *gin.Context, err error) {
	if ae, ok := err.(*apperr.AppError); ok {
		c.JSON(http.StatusOK, Response{
			Code: ae.Code,
			Msg:  ae.Message,
		})
		return
	}
	code := apperr.CodeFor(err)
	c.JSON(http.StatusOK, Response{
		Code: code,
		Msg:  failMsg(code, err),
	})
}

// failMsg internal-class codes never carry the underlying error text to
// clients; the detail stays in the logs.
func failMsg(code int, err error) string {
	switch code {
	case apperr.CodeInternalError, apperr.CodeDatabaseError,
		apperr.CodeCacheError, apperr.CodeCounterUnderflow,
		apperr.CodeStaleTracker:
		return "internal error"
	}
	return err.Error()
}

// FailWithCode Fail with specific code
func FailWithCode(c *gin.Context, code int, msg string) {
	c.JSON(http.StatusOK, Response{
		Code: code,
		Msg:  msg,
	})
}

// BadRequest Bad request response
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{
		Code: apperr.CodeBadRequest,
		Msg:  msg,
	})
}

// Unauthorized Unauthorized response
func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, Response{
		Code: apperr.CodeUnauthorized,
		Msg:  msg,
	})
}

// Forbidden Forbidden response
func Forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, Response{
		Code: apperr.CodeForbidden,
		Msg:  msg,
	})
}

// NotFound Not found response
func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Response{
		Code: apperr.CodeNotFound,
		Msg:  msg,
	})
}

// InternalError Internal server error response
// Underflow and other invariant violations map here; details stay in logs.
func InternalError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, Response{
		Code: apperr.CodeInternalError,
		Msg:  msg,
	})
}
