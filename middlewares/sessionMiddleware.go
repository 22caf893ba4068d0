package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/stockcycle_backend/config"
	"github.com/mmdatafocus/stockcycle_backend/utils"
)

// SessionMiddleware puts the acting operator into the request context.
// A "token" header is resolved through redis ("Token:<token>"); without one the
// "x-operator" header is trusted as is. The operator is the default seller of a rollover.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		token := strings.TrimSpace(c.Request.Header.Get("token"))
		if token == "" {
			if operator := strings.TrimSpace(c.Request.Header.Get("x-operator")); operator != "" {
				ctx = utils.SetUserNameInContext(ctx, operator)
				c.Request = c.Request.WithContext(ctx)
			}
			c.Next()
			return
		}

		var username string
		exists, err := config.GetRedisObject(ctx, config.GetRedisDB(), "Token:"+token, &username)
		if err != nil || !exists || username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(utils.SetUserNameInContext(ctx, username))
		c.Next()
	}
}
