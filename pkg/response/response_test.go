package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/discovery-search/pkg/errors"
	"github.com/kart-io/discovery-search/pkg/utils/json"
)

func TestHTTPStatusFallback(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		want int
	}{
		{"success", &Response{Code: 0}, http.StatusOK},
		{"registered", &Response{Code: errors.ErrReindexAlreadyRunning.Code}, http.StatusConflict},
		{"未注册 404", &Response{Code: errors.MakeCode(99, errors.CategoryResource, 999)}, http.StatusNotFound},
		{"未注册 503", &Response{Code: errors.MakeCode(99, errors.CategoryNetwork, 999)}, http.StatusServiceUnavailable},
		{"explicit", &Response{Code: 1, HTTPCode: http.StatusTeapot}, http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resp.HTTPStatus())
		})
	}
}

func TestWriterFail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Accept-Language", "zh-CN")
	c.Set(RequestIDKey, "01HZY")

	Fail(c, errors.ErrEntityNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, c.IsAborted())

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.ErrEntityNotFound.Code, body.Code)
	assert.Equal(t, "实体不存在", body.Message)
	assert.Equal(t, "01HZY", body.RequestID)
	assert.NotZero(t, body.Timestamp)
}
