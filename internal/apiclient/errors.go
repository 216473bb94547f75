package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pkt.systems/ecrituria/schema"
)

// Error is a backend failure: a non-2xx status or a success:false body.
// Detail carries the server message verbatim.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Status == 0 || e.Status == http.StatusOK {
		return e.Detail
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Detail, e.Status)
}

// DetailOf returns the server detail of err when it is an *Error, and
// err.Error() otherwise.
func DetailOf(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return err.Error()
}

// IsStatus reports whether err is an *Error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func resultError(result schema.Result) error {
	if result.Success {
		return nil
	}
	return logicalError(result.Detail)
}

func logicalError(detail string) error {
	if strings.TrimSpace(detail) == "" {
		detail = "request failed"
	}
	return &Error{Status: http.StatusOK, Detail: detail}
}

// detailFromBody extracts {"detail": ...} or {"error": ...} from an error
// body, falling back to the raw text and then the HTTP status.
func detailFromBody(data []byte, status string) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if len(body.Detail) > 0 {
			var text string
			if err := json.Unmarshal(body.Detail, &text); err == nil && text != "" {
				return text
			}
			if string(body.Detail) != "null" {
				return string(body.Detail)
			}
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return text
	}
	return status
}
