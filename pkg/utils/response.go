package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Response standard response structure
type Response struct {
	Code      ResponseCode `json:"code"`
	Kind      string       `json:"kind,omitempty"`
	Message   string       `json:"message"`
	Data      interface{}  `json:"data,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// SuccessResponse returns success response
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      CodeSuccess,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// ErrorResponse returns an error response with an explicit http status
func ErrorResponse(c *gin.Context, httpCode int, message string) {
	c.JSON(httpCode, Response{
		Code:      CodeInvalidParam,
		Kind:      CodeInvalidParam.String(),
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// Error writes an error of the given code
func Error(c *gin.Context, code ResponseCode, message string) {
	c.JSON(code.HTTPStatus(), Response{
		Code:      code,
		Kind:      code.String(),
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// ErrorFrom maps a service error to its kind and writes it. Errors that are
// not AppErrors are reported as internal and their text is not leaked.
func ErrorFrom(c *gin.Context, err error) {
	appErr, ok := IsAppError(err)
	if !ok {
		_ = c.Error(err)
		Error(c, CodeInternalError, ErrInternalError.Message)
		return
	}
	if appErr.Code.HTTPStatus() >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	Error(c, appErr.Code, appErr.Message)
}

// PageResponse page response structure
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
}

// SuccessPageResponse returns success page response
func SuccessPageResponse(c *gin.Context, list interface{}, total int64, page, size int) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data: PageResponse{
			List:  list,
			Total: total,
			Page:  page,
			Size:  size,
		},
		Timestamp: time.Now().Unix(),
	})
}
