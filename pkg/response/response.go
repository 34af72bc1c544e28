package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the uniform JSON envelope for the REST API.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success writes a 200 response.
func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: message, Data: data})
}

// Fail writes a 400 response.
func Fail(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusBadRequest, Response{Code: 1, Message: message, Data: data})
}

// FailWithStatus writes a response with an explicit HTTP status.
func FailWithStatus(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Code: 1, Message: message})
}
