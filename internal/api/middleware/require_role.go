package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/voicewise/insights/internal/utils"
)

// RequireRole admits requests whose token role is one of allowed. It must run
// after WebhookAuth.
func RequireRole(allowed ...string) gin.HandlerFunc {
	allow := map[string]struct{}{}
	for _, a := range allowed {
		a = strings.TrimSpace(strings.ToLower(a))
		if a != "" {
			allow[a] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		role := c.GetString("role")
		if _, ok := allow[role]; role == "" || !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, apiError{
				Code:    utils.CodeForbidden,
				Message: "forbidden",
			})
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc { return RequireRole("admin") }

// RequireDashboard admits dashboard users but not webhook integrations.
func RequireDashboard() gin.HandlerFunc { return RequireRole("admin", "viewer") }

// RequireWebhook admits the telephony integration and admins.
func RequireWebhook() gin.HandlerFunc { return RequireRole("webhook", "admin") }
