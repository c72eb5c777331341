package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// maxErrorBody bounds how much of a failed response body is read.
const maxErrorBody = 1 << 20

// StatusError describes a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// downstreamError accepts both error body shapes seen from the backend:
// {"error": "message"} and {"error": {"code": "...", "message": "..."}}.
type downstreamError struct {
	Error json.RawMessage `json:"error"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into a FetchError for the named resource. The response body is fully
// consumed and closed.
func ParseResponseError(resp *http.Response, resource string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return apperrors.Fetch(resource, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to read body: %v", err),
		})
	}

	return apperrors.Fetch(resource, &StatusError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(bodyBytes),
	})
}

// errorMessage extracts the most useful message from an error body.
func errorMessage(body []byte) string {
	var downstream downstreamError
	if json.Unmarshal(body, &downstream) == nil && len(downstream.Error) > 0 {
		var msg string
		if json.Unmarshal(downstream.Error, &msg) == nil {
			return msg
		}
		var structured struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(downstream.Error, &structured) == nil && structured.Message != "" {
			if structured.Code != "" {
				return structured.Code + ": " + structured.Message
			}
			return structured.Message
		}
	}
	return strings.TrimSpace(string(body))
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
