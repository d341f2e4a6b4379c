// Package web defines common components for a web application.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/go-petr/pet-budget/pkg/errorspkg"
)

// ExposeErrorsKey is the gin context key telling whether 500 responses carry the underlying error.
const ExposeErrorsKey = "web.expose_errors"

// ErrorBody is the payload of every failed request.
type ErrorBody struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details any    `json:"details,omitempty"`
}

// Response holds the common response type for all APIs.
type Response struct {
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error wraps a given err into json friendly struct.
func Error(status int, err error) Response {
	return Response{Error: &ErrorBody{Message: err.Error(), Status: status}}
}

// Abort writes the error response and stops the handler chain.
func Abort(gctx *gin.Context, status int, err error) {
	gctx.AbortWithStatusJSON(status, Error(status, err))
}

// AbortValidation responds with 422 and the rejected fields, if any.
func AbortValidation(gctx *gin.Context, err error, details []FieldError) {
	res := Error(http.StatusUnprocessableEntity, err)
	if len(details) > 0 {
		res.Error.Details = details
	}

	gctx.AbortWithStatusJSON(http.StatusUnprocessableEntity, res)
}

// AbortInternal responds with 500. The cause is only included when exposing errors is enabled.
func AbortInternal(gctx *gin.Context, cause error) {
	res := Error(http.StatusInternalServerError, errorspkg.ErrInternal)
	if cause != nil && gctx.GetBool(ExposeErrorsKey) {
		res.Error.Details = cause.Error()
	}

	gctx.AbortWithStatusJSON(http.StatusInternalServerError, res)
}

// GetErrorMsg returns the message suffix for a failed validation tag.
func GetErrorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return " is required"
	case "gt":
		if fe.Param() == "0" {
			return " must be a positive integer"
		}

		return " must be greater than " + fe.Param()
	case "min":
		return " must be at least " + fe.Param()
	case "oneof":
		return " must be " + strings.ReplaceAll(fe.Param(), " ", " or ")
	case "envname":
		return " must be a non-empty string up to 50 characters"
	}

	return " is invalid"
}

// ValidationDetails converts validator errors to field errors.
//
// The first field error is returned as message. ok is false if err is not a validation error.
func ValidationDetails(err error) (message error, details []FieldError, ok bool) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return nil, nil, false
	}

	for _, fe := range ve {
		details = append(details, FieldError{Field: fe.Field(), Message: fe.Field() + GetErrorMsg(fe)})
	}

	return errors.New(details[0].Message), details, true
}

// DecodeErrorField returns the request field a JSON type mismatch refers to.
// It returns "" when the error is not tied to a field.
func DecodeErrorField(err error) string {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		return ute.Field
	}

	return ""
}

// AbortBind responds with 422 for a request body that could not be bound.
//
// Type mismatches on a field listed in fieldErrs are reported with that field's error.
// Bodies cut off by http.MaxBytesReader are reported with 413.
// Anything else that is not a validation error means the body is not a usable JSON object.
func AbortBind(gctx *gin.Context, err error, fieldErrs map[string]error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		Abort(gctx, http.StatusRequestEntityTooLarge, errorspkg.ErrBodyTooLarge)
		return
	}

	if msg, details, ok := ValidationDetails(err); ok {
		AbortValidation(gctx, msg, details)
		return
	}

	if fe, ok := fieldErrs[DecodeErrorField(err)]; ok {
		AbortValidation(gctx, fe, nil)
		return
	}

	AbortValidation(gctx, errorspkg.ErrInvalidBody, nil)
}

// JSONFieldName makes validator report fields by their json name.
func JSONFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}

	return name
}
