package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequestIDKey is where the request id middleware stores the id in the gin context.
const RequestIDKey = "request_id"

// JSONResponse is the envelope of every API reply. Code 0 means success; errors carry
// a five digit business code whose first three digits are the HTTP status.
type JSONResponse struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"requestId,omitempty"`
}

// Success returns a standard success response. A nil data is written as null.
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, JSONResponse{Code: 0, Message: "success", Data: data})
}

// Error returns a standard error response tagged with the request id, when known.
func Error(ctx *gin.Context, status int, code int, message string) {
	ctx.JSON(status, JSONResponse{
		Code:      code,
		Message:   message,
		RequestID: ctx.GetString(RequestIDKey),
	})
}

// Abort writes an error response and stops the handler chain. Middlewares use it.
func Abort(ctx *gin.Context, status int, code int, message string) {
	Error(ctx, status, code, message)
	ctx.Abort()
}
