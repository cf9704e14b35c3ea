package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/discovery-search/pkg/errors"
	"github.com/kart-io/discovery-search/pkg/infra/logger"
	"github.com/kart-io/discovery-search/pkg/response"
)

// HeaderXAdminToken carries the shared admin secret.
const HeaderXAdminToken = "X-Admin-Token"

// AdminToken rejects requests whose X-Admin-Token does not match token.
// When required is false every request passes (development mode).
func AdminToken(token string, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !required {
			c.Next()
			return
		}

		got := c.GetHeader(HeaderXAdminToken)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			logger.GetLogger(c.Request.Context()).Warnw("admin token rejected",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
			)
			response.Fail(c, errors.ErrAdminTokenInvalid)
			return
		}
		c.Next()
	}
}
