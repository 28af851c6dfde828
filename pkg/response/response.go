package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "libraryconnect.chat/pkg/errors"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Success writes 200 with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    appErrors.CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Created writes 201 with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    appErrors.CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error writes a predefined AppError.
func Error(c *gin.Context, appErr *appErrors.AppError) {
	c.JSON(appErr.Status, Response{
		Code:    appErr.Code,
		Message: appErr.Message,
		Data:    nil,
	})
}

// ErrorWithMsg writes appErr with a custom message.
func ErrorWithMsg(c *gin.Context, appErr *appErrors.AppError, message string) {
	Error(c, appErr.WithMessage(message))
}

// ErrorFromAppError renders any error. Non-AppErrors become 500 and their text is not exposed.
func ErrorFromAppError(c *gin.Context, err error) {
	c.JSON(appErrors.GetStatus(err), Response{
		Code:    appErrors.GetCode(err),
		Message: appErrors.GetMessage(err),
		Data:    nil,
	})
}

// Unauthorized aborts with 401.
func Unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
		Code:    appErrors.CodeTokenInvalid,
		Message: appErrors.ErrTokenInvalid.Message,
		Data:    nil,
	})
}

// TooManyRequests aborts with 429.
func TooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{
		Code:    appErrors.CodeTooManyRequests,
		Message: appErrors.ErrTooManyRequest.Message,
		Data:    nil,
	})
}
