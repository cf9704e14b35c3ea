package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/discovery-search/pkg/errors"
	"github.com/kart-io/discovery-search/pkg/infra/logger"
	"github.com/kart-io/discovery-search/pkg/response"
)

// Recovery converts a panic into an ErrPanic envelope. The stack trace
// goes to the log only, never to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.GetLogger(c.Request.Context()).Errorw("panic recovered",
					"panic", r,
					"stack_trace", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				response.Fail(c, errors.ErrPanic)
			}
		}()
		c.Next()
	}
}
