package middleware

import (
	"context"
	"errors"
	"net/http"

	"live-tick-excel/internal/api/constant"
	"live-tick-excel/internal/api/dto"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Error turns the first error recorded on the context into a JSON
// envelope. A request whose deadline passed answers 504 unless the handler
// already wrote its response.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		if errors.Is(c.Request.Context().Err(), context.DeadlineExceeded) {
			abort(c, constant.ErrSnapshotTimeout.StatusCode, constant.ErrSnapshotTimeout.Error())
			return
		}
		if len(c.Errors) == 0 {
			return
		}

		status, body := errorResponse(c.Errors[0].Err)
		abort(c, status, body)
	}
}

// errorResponse maps a handler error to its status code and envelope error.
func errorResponse(err error) (int, any) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]dto.ErrorType, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, dto.ErrorType{Field: fe.Field(), Message: fe.Error()})
		}
		return http.StatusBadRequest, fields
	}

	var ce constant.CustomError
	if errors.As(err, &ce) {
		return ce.StatusCode, ce.Error()
	}

	return http.StatusInternalServerError, err.Error()
}

func abort(c *gin.Context, status int, body any) {
	c.AbortWithStatusJSON(status, dto.Res{Success: false, Error: body})
}
