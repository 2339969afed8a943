package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/genodch/pilltrack/pkg/errors"
	"github.com/genodch/pilltrack/pkg/logger"
	"github.com/genodch/pilltrack/pkg/response"
)

// CronAuth guards the job trigger endpoint with a shared bearer secret. Any
// mismatch aborts the request before the pipeline can produce side effects;
// failures are logged as security-relevant events.
func CronAuth(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)

	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if secret == "" || len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			rejectTrigger(c, "missing bearer token")
			return
		}

		token := strings.TrimSpace(authz[7:])
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			rejectTrigger(c, "secret mismatch")
			return
		}

		c.Next()
	}
}

func rejectTrigger(c *gin.Context, reason string) {
	logger.WithModule("http").Warn("job trigger rejected",
		zap.String("reason", reason),
		zap.String("client_ip", c.ClientIP()),
	)
	c.Header("WWW-Authenticate", "Bearer")
	response.Error(c, errors.ErrUnauthorized)
	c.Abort()
}
