package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrServiceUnavailable wraps transport failures talking to the task service
var ErrServiceUnavailable = errors.New("task service unavailable")

// APIError is a non-2xx response from the task service
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Body       string
}

// ErrorBody is the error document the service writes
type ErrorBody struct {
	Error string `json:"error"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: [%d] %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: [%d] %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsClientError returns true for 4xx responses
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsUnauthorized returns true for 401 responses
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsNotFound returns true for 404 responses
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// NewAPIError builds an APIError from a response body, reading the service's
// {"error": "..."} message when present
func NewAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Body:       strings.TrimSpace(string(body)),
	}
	var eb ErrorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		apiErr.Message = eb.Error
	}
	return apiErr
}

// AsAPIError unwraps err into an *APIError
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
