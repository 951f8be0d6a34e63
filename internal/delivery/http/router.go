package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	custommiddleware "shadowtrade/internal/middleware"
)

// RouterConfig holds all dependencies for routing
type RouterConfig struct {
	AuthHandler   *AuthHandler
	ShadowHandler *ShadowHandler
}

// SetupRoutes configures all HTTP routes
func SetupRoutes(e *echo.Echo, config *RouterConfig) {
	// Middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging for high-frequency polling endpoints to reduce noise
			return c.Request().URL.Path == "/api/shadow/account"
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())

	// API group
	api := e.Group("/api")

	// Auth routes (public)
	auth := api.Group("/auth")
	{
		auth.POST("/login", config.AuthHandler.Login)
		auth.POST("/logout", config.AuthHandler.Logout)
	}

	// Shadow ledger routes (read-only, public)
	shadow := api.Group("/shadow")
	{
		shadow.GET("/account", config.ShadowHandler.GetAccount)
		shadow.GET("/trades", config.ShadowHandler.GetTrades)
		shadow.GET("/trades/open", config.ShadowHandler.GetOpenTrades)
		shadow.GET("/examples", config.ShadowHandler.GetExamples)
	}

	// Risk audit trail (read-only, public)
	api.GET("/risk/audits", config.ShadowHandler.GetAudits)

	// Operator routes (protected with AuthMiddleware)
	operator := api.Group("/shadow", custommiddleware.AuthMiddleware)
	{
		operator.POST("/reset", config.ShadowHandler.Reset)
	}
}
