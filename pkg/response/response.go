// Package response defines the JSON envelope returned by all HTTP handlers
// and convenience helpers for writing it through gin.
package response

import (
	"net/http"

	"github.com/kart-io/revdiff/pkg/errors"
)

// Response is the uniform JSON envelope.
type Response struct {
	// Code is the business error code, 0 on success.
	Code int `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Data carries the payload, if any.
	Data interface{} `json:"data,omitempty"`

	// RequestID correlates the response with server logs.
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is the response time in Unix milliseconds.
	Timestamp int64 `json:"timestamp,omitempty"`

	// HTTPCode is the HTTP status to send. Not serialized.
	HTTPCode int `json:"-"`
}

// HTTPStatus returns the HTTP status for this response.
func (r *Response) HTTPStatus() int {
	if r.HTTPCode != 0 {
		return r.HTTPCode
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// Success builds a success response with data.
func Success(data interface{}) *Response {
	return &Response{
		Code:     0,
		Message:  "Success",
		Data:     data,
		HTTPCode: http.StatusOK,
	}
}

// SuccessWithMessage builds a success response with a custom message.
func SuccessWithMessage(message string, data interface{}) *Response {
	r := Success(data)
	r.Message = message
	return r
}

// Err builds an error response from an Errno.
func Err(e *errors.Errno) *Response {
	return &Response{
		Code:     e.Code,
		Message:  e.MessageEN,
		HTTPCode: e.HTTPStatus(),
	}
}

// ErrWithLang builds an error response with a language-specific message.
func ErrWithLang(e *errors.Errno, lang string) *Response {
	return &Response{
		Code:     e.Code,
		Message:  e.Message(lang),
		HTTPCode: e.HTTPStatus(),
	}
}

// ErrorWithCode builds an error response from a bare code and message.
func ErrorWithCode(code int, message string) *Response {
	r := &Response{
		Code:    code,
		Message: message,
	}
	if registered, ok := errors.Lookup(code); ok {
		r.HTTPCode = registered.HTTPStatus()
	}
	return r
}

// PageData wraps a paginated list payload.
type PageData struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// Page builds a paginated success response.
func Page(list interface{}, total int64, page, pageSize int) *Response {
	return Success(&PageData{
		List:     list,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}
