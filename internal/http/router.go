package api

import (
	stdhttp "net/http"

	intconfig "freight-backend/internal/config"
	"freight-backend/internal/domain"
	h "freight-backend/internal/http/handlers"
	"freight-backend/internal/http/middleware"
	"freight-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps is everything the router hands to its handlers.
type Deps struct {
	Env      intconfig.Env
	System   h.SystemHandler
	Paystack h.PaystackHandler
	Booking  h.BookingHandler
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(d.Env.CORSAllowedOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		utils.LogWarn("", "http", "init", "failed to set trusted proxies: "+err.Error())
	}

	r.OPTIONS("/*path", func(c *gin.Context) { c.AbortWithStatus(stdhttp.StatusNoContent) })

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route tidak ditemukan",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := middleware.AuthRequired(d.Env.IdentityJWTSecret)
	payoutRoles := middleware.RequireRoles(domain.RoleTransporter, domain.RoleAdmin)

	sys := d.System
	sys.Engine = r

	api := r.Group("/api")
	{
		api.GET("/health", sys.Health)
		api.GET("/db-check", sys.DBCheck)
		api.GET("/routes", sys.Routes)

		mountPaystack(api.Group("/paystack"), d.Paystack, d.Env, authed, payoutRoles)
		mountBooking(api.Group("/booking", authed), d.Booking, payoutRoles)
	}

	return r
}

func mountPaystack(g *gin.RouterGroup, ph h.PaystackHandler, env intconfig.Env, authed, payoutRoles gin.HandlerFunc) {
	g.POST("/webhook", ph.Webhook)
	g.POST("/refund", middleware.ServerSecret(env.RefundEndpointSecret), ph.Refund)

	g.POST("/initialize", authed, ph.Initialize)
	g.GET("/verify/:reference", authed, ph.Verify)
	g.GET("/resolve-account", authed, ph.ResolveAccount)
	g.POST("/transfer", authed, payoutRoles, ph.Transfer)
	g.POST("/create-recipient", authed, payoutRoles, ph.CreateRecipient)
	g.GET("/recipients", authed, payoutRoles, ph.ListRecipients)
}

func mountBooking(g *gin.RouterGroup, bh h.BookingHandler, payoutRoles gin.HandlerFunc) {
	g.POST("/reserve", middleware.RequireRoles(domain.RoleClient, domain.RoleAdmin), bh.Reserve)
	g.POST("/cleanup", bh.Cleanup)
	g.GET("/:id", bh.Get)
	g.POST("/:id/confirm", payoutRoles, bh.Confirm)
	g.POST("/:id/cancel", bh.Cancel)
	g.POST("/:id/status", payoutRoles, bh.AdvanceStatus)
	g.GET("/:id/receipt", bh.Receipt)
}
