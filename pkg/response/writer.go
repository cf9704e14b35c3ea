package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/discovery-search/pkg/errors"
	"github.com/kart-io/discovery-search/pkg/validator"
)

// RequestIDKey is the gin context key the request-id middleware writes to.
const RequestIDKey = "request_id"

// Writer writes envelope responses to a gin context.
type Writer struct {
	c    *gin.Context
	lang string
}

// NewWriter creates a new response writer for the given context.
// The language is taken from the Accept-Language header.
func NewWriter(c *gin.Context) *Writer {
	return &Writer{c: c, lang: c.GetHeader("Accept-Language")}
}

func (w *Writer) prepare(r *Response) *Response {
	r.Timestamp = time.Now().UnixMilli()
	if id := w.c.GetString(RequestIDKey); id != "" {
		r.RequestID = id
	}
	return r
}

// OK sends a successful response with data.
func (w *Writer) OK(data interface{}) {
	resp := w.prepare(Success(data))
	w.c.JSON(resp.HTTPStatus(), resp)
}

// Fail sends an error response using Errno.
func (w *Writer) Fail(e *errors.Errno) {
	resp := w.prepare(ErrWithLang(e, w.lang))
	w.c.AbortWithStatusJSON(e.HTTPStatus(), resp)
}

// FailWithData sends an error response carrying a payload.
func (w *Writer) FailWithData(e *errors.Errno, data interface{}) {
	resp := w.prepare(ErrWithLang(e, w.lang).WithData(data))
	w.c.AbortWithStatusJSON(e.HTTPStatus(), resp)
}

// FailWithError converts a standard error and sends it.
func (w *Writer) FailWithError(err error) {
	w.Fail(errors.FromError(err))
}

// FailWithValidation sends a validation error response with field details.
func (w *Writer) FailWithValidation(verr *validator.ValidationErrors) {
	resp := w.prepare(&Response{
		Code:     errors.ErrValidationFailed.Code,
		HTTPCode: http.StatusBadRequest,
		Message:  verr.First(),
		Data:     verr.ToMap(),
	})
	w.c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}

// OK sends a successful response.
func OK(c *gin.Context, data interface{}) {
	NewWriter(c).OK(data)
}

// Fail sends an error response using Errno.
func Fail(c *gin.Context, e *errors.Errno) {
	NewWriter(c).Fail(e)
}

// FailWithError sends an error response from a standard error.
func FailWithError(c *gin.Context, err error) {
	NewWriter(c).FailWithError(err)
}

// FailWithValidation sends a validation error response.
func FailWithValidation(c *gin.Context, verr *validator.ValidationErrors) {
	NewWriter(c).FailWithValidation(verr)
}
