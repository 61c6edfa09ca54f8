package utils

import (
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Code: %d, Message: %s", e.Code, e.Message)
}

// NewAPIError builds an APIError. An empty message falls back to the status text.
func NewAPIError(code int, message string) error {
	if message == "" {
		message = http.StatusText(code)
	}
	return &APIError{
		Code:    code,
		Message: message,
	}
}
