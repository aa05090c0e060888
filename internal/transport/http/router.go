package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/abakirov/taskhub/internal/realtime"
	"github.com/abakirov/taskhub/internal/token"
	"github.com/abakirov/taskhub/internal/transport/http/handler"
	"github.com/abakirov/taskhub/internal/transport/http/middleware"
)

func NewRouter(
	logger *slog.Logger,
	authHandler *handler.AuthHandler,
	taskHandler *handler.TaskHandler,
	hub *realtime.Hub,
	tokens *token.Service,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	authMW := middleware.Auth(tokens)

	// Public auth routes
	auth := r.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/verify-email", authHandler.VerifyEmail)
	auth.POST("/resend-code", authHandler.ResendCode)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/password-reset", authHandler.RequestPasswordReset)
	auth.POST("/password-reset/confirm", authHandler.ResetPassword)

	// Logout needs a valid access token so it knows whose refresh token to revoke.
	auth.POST("/logout", authMW, authHandler.Logout)

	// Protected task routes
	tasks := r.Group("/tasks", authMW)
	tasks.GET("", taskHandler.List)
	tasks.POST("", taskHandler.Create)
	tasks.GET("/:id", taskHandler.GetByID)
	tasks.PATCH("/:id", taskHandler.Update)
	tasks.DELETE("/:id", taskHandler.Delete)

	// Websocket handshake authenticates inside the handler, before the
	// connection joins any channel.
	r.GET("/ws", hub.Handle)

	return r
}
