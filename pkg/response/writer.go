package response

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/revdiff/pkg/errors"
)

// RequestIDKey is the gin context key holding the request ID.
const RequestIDKey = "X-Request-ID"

// Writer provides convenient methods to write envelope responses to a gin context.
type Writer struct {
	ctx      *gin.Context
	withTime bool
	lang     string
}

// NewWriter creates a new response writer for the given context.
func NewWriter(ctx *gin.Context) *Writer {
	return &Writer{ctx: ctx}
}

// WithTimestamp enables the automatic timestamp in responses.
func (w *Writer) WithTimestamp() *Writer {
	w.withTime = true
	return w
}

// WithLang sets the language for error messages.
func (w *Writer) WithLang(lang string) *Writer {
	w.lang = lang
	return w
}

// prepare adds optional fields to the response.
func (w *Writer) prepare(r *Response) *Response {
	if w.withTime {
		r.Timestamp = time.Now().UnixMilli()
	}
	if id := w.ctx.GetString(RequestIDKey); id != "" {
		r.RequestID = id
	}
	return r
}

// OK sends a successful response with data.
func (w *Writer) OK(data interface{}) {
	resp := w.prepare(Success(data))
	w.ctx.JSON(resp.HTTPStatus(), resp)
}

// OKWithMessage sends a successful response with a custom message.
func (w *Writer) OKWithMessage(message string, data interface{}) {
	resp := w.prepare(SuccessWithMessage(message, data))
	w.ctx.JSON(resp.HTTPStatus(), resp)
}

// Fail sends an error response using an Errno.
func (w *Writer) Fail(e *errors.Errno) {
	var resp *Response
	if w.lang != "" {
		resp = w.prepare(ErrWithLang(e, w.lang))
	} else {
		resp = w.prepare(Err(e))
	}
	w.ctx.JSON(e.HTTPStatus(), resp)
}

// FailWithError converts a standard error and sends it.
// If the error is an Errno it is used directly, otherwise it is wrapped
// as ErrInternal.
func (w *Writer) FailWithError(err error) {
	w.Fail(errors.FromError(err))
}

// PageOK sends a paginated response.
func (w *Writer) PageOK(list interface{}, total int64, page, pageSize int) {
	resp := w.prepare(Page(list, total, page, pageSize))
	w.ctx.JSON(resp.HTTPStatus(), resp)
}

// Send sends a custom response.
func (w *Writer) Send(r *Response) {
	resp := w.prepare(r)
	w.ctx.JSON(resp.HTTPStatus(), resp)
}

// Convenience functions that work directly with *gin.Context.

// OK sends a successful response.
func OK(ctx *gin.Context, data interface{}) {
	NewWriter(ctx).OK(data)
}

// OKWithMessage sends a successful response with message.
func OKWithMessage(ctx *gin.Context, message string, data interface{}) {
	NewWriter(ctx).OKWithMessage(message, data)
}

// Fail sends an error response using an Errno.
func Fail(ctx *gin.Context, e *errors.Errno) {
	NewWriter(ctx).Fail(e)
}

// FailWithError sends an error response from a standard error.
func FailWithError(ctx *gin.Context, err error) {
	NewWriter(ctx).FailWithError(err)
}

// PageOK sends a paginated response.
func PageOK(ctx *gin.Context, list interface{}, total int64, page, pageSize int) {
	NewWriter(ctx).PageOK(list, total, page, pageSize)
}
