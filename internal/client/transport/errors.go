package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/skynetlabs/skynet/registry/api/errcode"
)

// UnexpectedHTTPStatusError is returned when a portal answers with an error
// status and no message.
type UnexpectedHTTPStatusError struct {
	StatusCode int
	Status     string
}

func (e *UnexpectedHTTPStatusError) Error() string {
	return fmt.Sprintf("received unexpected HTTP status: %s", e.Status)
}

// PortalError carries the message of a portal error payload verbatim.
type PortalError struct {
	StatusCode int
	Message    string
}

func (e *PortalError) Error() string {
	return e.Message
}

// UnexpectedHTTPResponseError is returned when an error payload claims to be
// JSON but does not parse.
type UnexpectedHTTPResponseError struct {
	ParseErr   error
	StatusCode int
	Response   []byte
}

func (e *UnexpectedHTTPResponseError) Error() string {
	return fmt.Sprintf("error parsing HTTP %d response body: %s: %q", e.StatusCode, e.ParseErr.Error(), string(e.Response))
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var (
		pe *PortalError
		se *UnexpectedHTTPStatusError
		re *UnexpectedHTTPResponseError
		ee errcode.Error
	)
	switch {
	case errors.As(err, &pe):
		return pe.StatusCode
	case errors.As(err, &se):
		return se.StatusCode
	case errors.As(err, &re):
		return re.StatusCode
	case errors.As(err, &ee):
		return ee.Code.Descriptor().HTTPStatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the portal.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

func parseHTTPErrorResponse(statusCode int, header http.Header, body []byte) error {
	if len(body) == 0 {
		return makeError(statusCode, http.StatusText(statusCode), "")
	}

	ctHeader := header.Get("Content-Type")
	if ctHeader != "" {
		contentType, _, err := mime.ParseMediaType(ctHeader)
		if err != nil {
			return fmt.Errorf("failed parsing content-type: %w", err)
		}
		if contentType != "application/json" {
			return makeError(statusCode, http.StatusText(statusCode), string(body))
		}
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		if ctHeader == "" {
			// Portals sometimes answer with plain text and no type.
			return makeError(statusCode, http.StatusText(statusCode), string(body))
		}
		return &UnexpectedHTTPResponseError{
			ParseErr:   err,
			StatusCode: statusCode,
			Response:   body,
		}
	}
	return makeError(statusCode, http.StatusText(statusCode), payload.Message)
}

func makeError(statusCode int, status, message string) error {
	if message != "" {
		return &PortalError{StatusCode: statusCode, Message: message}
	}
	switch statusCode {
	case http.StatusUnauthorized:
		return errcode.ErrorCodeUnauthorized.WithMessage(status)
	case http.StatusForbidden:
		return errcode.ErrorCodeDenied.WithMessage(status)
	case http.StatusTooManyRequests:
		return errcode.ErrorCodeTooManyRequests.WithMessage(status)
	default:
		return &UnexpectedHTTPStatusError{StatusCode: statusCode, Status: fmt.Sprintf("%d %s", statusCode, status)}
	}
}

// HandleHTTPResponseError returns the error described by an unsuccessful
// response, or nil for statuses 200-399. The body is consumed.
func HandleHTTPResponseError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 399 {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return parseHTTPErrorResponse(resp.StatusCode, resp.Header, body)
}
