package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicewise/insights/internal/api/handlers"
	"github.com/voicewise/insights/internal/api/middleware"
)

type Deps struct {
	LiveCall  *handlers.LiveCallHandler
	Dashboard *handlers.DashboardHandler
	Search    *handlers.SearchHandler
	Admin     *handlers.AdminHandler

	JWTSecret string
	JWTIssuer string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/")
	auth.Use(middleware.WebhookAuth(d.JWTSecret, d.JWTIssuer))

	webhooks := auth.Group("/webhooks/calls", middleware.RequireWebhook())
	webhooks.POST("/:call_id/turns", d.LiveCall.Turn)
	webhooks.POST("/:call_id/complete", d.LiveCall.Complete)

	live := auth.Group("/live")
	live.GET("/calls", d.LiveCall.List)
	live.GET("/calls/:call_id", d.LiveCall.Get)
	live.GET("/queue", middleware.RequireAdmin(), d.LiveCall.QueueStats)

	dash := auth.Group("/dashboard", middleware.RequireDashboard())
	dash.GET("/summary", d.Dashboard.Summary)
	dash.GET("/trends/:kind", d.Dashboard.Trend)
	dash.GET("/calls", d.Dashboard.Calls)
	dash.POST("/insights/bulk", d.Dashboard.BulkInsights)
	dash.GET("/search", d.Search.Search)

	admin := auth.Group("/admin", middleware.RequireAdmin())
	admin.POST("/cache/invalidate", d.Admin.InvalidateTenant)
	admin.POST("/cache/clear", d.Admin.ClearAll)
}
