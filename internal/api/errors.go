package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Error is a non-2xx response from the server.
type Error struct {
	StatusCode int
	Body       string // raw response body
	Code       string // "error" field of a JSON body, if any
	Message    string // "message" field of a JSON body, if any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func newError(status int, body []byte) *Error {
	e := &Error{StatusCode: status, Body: string(body)}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		e.Code = payload.Error
		e.Message = payload.Message
	}
	return e
}
