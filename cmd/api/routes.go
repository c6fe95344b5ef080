package main

import (
	"net/http"
	"time"

	"inbound-genie/internal/app"
	"inbound-genie/internal/httpapi"
	"inbound-genie/internal/rbac"
	"inbound-genie/internal/telephony"
	"inbound-genie/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, a *app.App, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), a.DB, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Voice vendor webhook; authenticated by shared secret, not JWT.
	wh := telephony.CallEndedHandler{Calls: a.Calls, Biller: a.Biller, Secret: a.Config.Webhook.CallSecret}
	r.POST("/webhooks/calls/ended", wh.HandleCallEnded)

	h := httpapi.Handlers{
		Ledger:     a.Ledger,
		Calls:      a.Calls,
		Reconciler: a.Reconciler,
		Reports:    a.Reports,
		Audit:      a.Audit,
	}

	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		// Dashboard routes, scoped to the caller's account.
		own := v1.Group("")
		own.Use(rbac.RequireAccount())
		{
			own.GET("/credits", h.GetCredits)
			own.POST("/credits/reconcile", h.ReconcileOwn)
			own.GET("/usage", h.ListUsage)
			own.GET("/usage/summary", h.UsageSummary)
			own.GET("/calls/:call_id", h.GetCall)
		}

		// ADMIN routes
		// Only admins and the service role (backend jobs) may touch other accounts.
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.POST("/accounts/:account_id/credits", h.AdminTopUp)
			admin.POST("/accounts/:account_id/trial", h.AdminGrantTrial)
			admin.POST("/accounts/:account_id/reconcile", h.AdminReconcile)
		}
	}
}
