// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError represents a non-2xx response from the ChurchTools API.
type APIError struct {
	// StatusCode is the HTTP response status code.
	StatusCode int

	// Method and Path identify the failed request.
	Method string
	Path   string

	// Message is the error description from the response body, or
	// the raw body when it is not the usual JSON shape.
	Message string
}

func (err *APIError) Error() string {
	return fmt.Sprintf("directory: %s %s: HTTP %d: %s", err.Method, err.Path, err.StatusCode, err.Message)
}

// IsNotFound reports whether err is a 404 from the ChurchTools API.
func IsNotFound(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401 or 403, which usually
// means the session cookie expired or the API account lacks rights.
func IsUnauthorized(err error) bool {
	var apiError *APIError
	if !errors.As(err, &apiError) {
		return false
	}
	return apiError.StatusCode == http.StatusUnauthorized || apiError.StatusCode == http.StatusForbidden
}

func parseAPIError(method, path string, statusCode int, body []byte) *APIError {
	apiError := &APIError{StatusCode: statusCode, Method: method, Path: path}

	var wireError struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Message != "" {
		apiError.Message = wireError.Message
	} else {
		apiError.Message = strings.TrimSpace(string(body))
	}
	return apiError
}
