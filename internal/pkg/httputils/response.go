// Package httputils provides HTTP utility functions.
package httputils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/pkg/errors"
)

// Response is the unified API response envelope. Code is 0 on success
// and a registered error code otherwise.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// WriteResponse writes the response to the client.
// It handles both success and error cases, ensuring consistent response format.
func WriteResponse(c *gin.Context, err error, data interface{}) {
	if err != nil {
		errno := errors.FromError(err)
		c.JSON(errno.HTTPStatus(), &Response{
			Code:    errno.Code,
			Message: errno.Message(lang(c)),
		})
		return
	}

	c.JSON(http.StatusOK, &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// lang picks the response language from the Accept-Language header.
func lang(c *gin.Context) string {
	if l := c.GetHeader("Accept-Language"); len(l) >= 2 && l[:2] == "zh" {
		return "zh"
	}
	return "en"
}
