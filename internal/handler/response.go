package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/anjali-yatham/Medisense/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// WriteError maps an application error to an HTTP status and writes the
// error response.
func WriteError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch apperrors.Code(err) {
	case apperrors.ErrNotFound:
		status = http.StatusNotFound
		message = err.Error()
	case apperrors.ErrBadRequest:
		status = http.StatusBadRequest
		message = err.Error()
	case apperrors.ErrConflict, apperrors.ErrExhausted:
		status = http.StatusConflict
		message = err.Error()
	case apperrors.ErrUnauthorized:
		status = http.StatusUnauthorized
		message = err.Error()
	case apperrors.ErrForbidden:
		status = http.StatusForbidden
		message = err.Error()
	}

	c.JSON(status, NewErrorResponse(message))
}
