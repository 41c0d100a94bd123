package appstore

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorItem is one entry of the vendor error envelope.
type ErrorItem struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
	Code   string `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// APIError is returned for every non-2xx response: report not yet
// available, not found, rate limited, bad request.
type APIError struct {
	StatusCode int
	Errors     []ErrorItem
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("appstore: http %d", e.StatusCode)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", item.Code, item.Detail))
	}
	return fmt.Sprintf("appstore: http %d: %s", e.StatusCode, strings.Join(parts, "; "))
}

// Code returns the first error code, if any.
func (e *APIError) Code() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Code
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var envelope struct {
		Errors []ErrorItem `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Errors = envelope.Errors
	}
	return apiErr
}
