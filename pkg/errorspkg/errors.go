// Package errorspkg provides common app errors.
package errorspkg

import "errors"

var (
	// ErrInternal indicates internal server error.
	ErrInternal = errors.New("Internal Server Error")
	// ErrRouteNotFound indicates that no handler is registered for the request path.
	ErrRouteNotFound = errors.New("Route not found")
	// ErrInvalidBody indicates that the request body is not a JSON object.
	ErrInvalidBody = errors.New("request body must be a JSON object")
	// ErrBodyTooLarge indicates that the request body exceeds the allowed size.
	ErrBodyTooLarge = errors.New("request body too large")
)
