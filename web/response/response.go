// Package response provides HTTP response values returned by controllers.
//
// A Response is plain data: a status code, a subject (the body) and headers.
// Constructors exist for the status codes controllers commonly return.
package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// StatusUnknown is returned when a controller produced no response. The code
// is unassigned by HTTP on purpose.
const StatusUnknown = 209

const (
	textPlain     = "text/plain"
	textPlainUTF8 = "text/plain; charset=utf-8"
)

// Response is an HTTP response value.
type Response struct {
	Code    int
	Subject any
	Headers map[string]string
}

// New creates a response. A nil headers map is replaced by an empty one.
func New(code int, subject any, headers map[string]string) *Response {
	if headers == nil {
		headers = map[string]string{}
	}
	return &Response{Code: code, Subject: subject, Headers: headers}
}

// String renders the response for debugging.
func (r *Response) String() string {
	keys := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%q: %q", k, r.Headers[k]))
	}
	return fmt.Sprintf("IResponse(%d, %#v, {%s})", r.Code, r.Subject, strings.Join(pairs, ", "))
}

// Body encodes the subject. Strings and byte slices are written as-is,
// nested responses contribute their own body, anything else is JSON.
func (r *Response) Body() ([]byte, string, error) {
	switch s := r.Subject.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(s), textPlainUTF8, nil
	case []byte:
		return s, "application/octet-stream", nil
	case *Response:
		return s.Body()
	default:
		data, err := json.Marshal(s)
		if err != nil {
			return nil, "", fmt.Errorf("encode response subject: %w", err)
		}
		return data, "application/json", nil
	}
}

// Write sends the response. Headers set on the response win over the
// content type inferred from the subject.
func (r *Response) Write(w http.ResponseWriter) error {
	body, contentType, err := r.Body()
	if err != nil {
		return err
	}

	h := w.Header()
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	for k, v := range r.Headers {
		h.Set(k, v)
	}

	w.WriteHeader(r.Code)
	if len(body) > 0 {
		_, err = w.Write(body)
	}
	return err
}

// Ok is a 200 response.
func Ok(subject any, headers map[string]string) *Response {
	return New(http.StatusOK, subject, headers)
}

// Created is a 201 response.
func Created(subject any, headers map[string]string) *Response {
	return New(http.StatusCreated, subject, headers)
}

// Unknown is returned when a route handler produced nothing.
func Unknown() *Response {
	return New(StatusUnknown, "", nil)
}

func redirect(code int, url string) *Response {
	return New(code, "", map[string]string{
		"content-type": textPlainUTF8,
		"location":     url,
	})
}

// MovedPermanently is a 301 redirect to url.
func MovedPermanently(url string) *Response {
	return redirect(http.StatusMovedPermanently, url)
}

// Found is a 302 redirect to url.
func Found(url string) *Response {
	return redirect(http.StatusFound, url)
}

// SeeOther is a 303 redirect to url.
func SeeOther(url string) *Response {
	return redirect(http.StatusSeeOther, url)
}

// BadRequest is a 400 response.
func BadRequest(subject any, headers map[string]string) *Response {
	return New(http.StatusBadRequest, subject, headers)
}

// Unauthorized is a 401 response.
func Unauthorized(subject any, headers map[string]string) *Response {
	if isEmpty(subject) {
		subject = "Unauthorized"
	}
	return New(http.StatusUnauthorized, subject, headers)
}

// Forbidden is a 403 response.
func Forbidden(subject any, headers map[string]string) *Response {
	if isEmpty(subject) {
		subject = "Access is Forbidden"
	}
	return New(http.StatusForbidden, subject, headers)
}

// NotFound is a 404 response.
func NotFound(subject any, headers map[string]string) *Response {
	if isEmpty(subject) {
		subject = "Mamba resource not found"
	}
	return New(http.StatusNotFound, subject, headers)
}

// Conflict is a 409 response describing the conflicting value.
func Conflict(subject, value any, message string) *Response {
	return New(http.StatusConflict,
		fmt.Sprintf("Conflict for %v (%v): %s", subject, value, message),
		map[string]string{
			"x-mamba-subject": fmt.Sprint(subject),
			"x-mamba-value":   fmt.Sprint(value),
		},
	)
}

// AlreadyExists is a 409 response for a create that collides with an
// existing resource.
func AlreadyExists(subject, value any, message string) *Response {
	return Conflict(subject, value, fmt.Sprintf("%v already exists: %s", subject, message))
}

// InternalServerError is a 500 response.
func InternalServerError(message string) *Response {
	return New(http.StatusInternalServerError, message, map[string]string{"content-type": textPlain})
}

// NotImplemented is a 501 response for url.
func NotImplemented(url, message string) *Response {
	return New(http.StatusNotImplemented,
		fmt.Sprintf("Not Implemented: %s\n%s", url, message),
		map[string]string{"content-type": textPlain},
	)
}

func isEmpty(subject any) bool {
	switch s := subject.(type) {
	case nil:
		return true
	case string:
		return s == ""
	}
	return false
}
