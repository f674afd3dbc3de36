// Package router assembles the HTTP API.
package router

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventforms/backend/internal/admission"
	"github.com/eventforms/backend/internal/auth"
	"github.com/eventforms/backend/internal/events"
	"github.com/eventforms/backend/internal/lifecycle"
	"github.com/eventforms/backend/internal/middleware"
	"github.com/eventforms/backend/internal/questions"
	"github.com/eventforms/backend/internal/responses"
	"github.com/eventforms/backend/internal/store"
	"github.com/eventforms/backend/internal/uploads"
	"github.com/eventforms/backend/pkg/response"
	"github.com/eventforms/backend/pkg/storage"
)

const healthTimeout = 2 * time.Second

// Deps are the collaborators the API is built from.
type Deps struct {
	Store         store.Store
	Evaluator     *admission.Evaluator
	Gateway       *lifecycle.Gateway
	JWT           *auth.JWTService
	Admins        *auth.Admins
	Blobs         storage.Blobs
	UploadDir     string // served at /uploads when set
	MaxFlyerBytes int64
	CORSOrigins   string
	// AllowQueryAdmin accepts the legacy ?admin=1 flag as admin identity.
	AllowQueryAdmin bool
	Logger          *zap.Logger
}

// New builds the gin engine with every route mounted under /api.
func New(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	authHandler := auth.NewHandler(d.Admins, d.JWT, logger)
	eventHandler := events.NewHandler(d.Store, d.Evaluator, d.Blobs, logger)
	questionHandler := questions.NewHandler(d.Store, logger)
	responseHandler := responses.NewHandler(d.Gateway, d.Store, logger)
	uploadHandler := uploads.NewHandler(d.Blobs, d.Store, d.MaxFlyerBytes, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(d.CORSOrigins))
	router.Use(middleware.Logger(logger))

	if d.UploadDir != "" {
		router.Static("/uploads", d.UploadDir)
	}

	api := router.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	api.POST("/auth/login", authHandler.Login)

	// Everything below resolves the admin identity; anonymous callers pass through.
	open := api.Group("", middleware.ResolveAdmin(d.JWT, d.AllowQueryAdmin))
	admin := open.Group("", middleware.RequireAdmin())
	{
		// Events
		open.GET("/events", eventHandler.List)
		admin.POST("/events", eventHandler.Create)
		admin.PUT("/events/reorder", eventHandler.Reorder)
		admin.GET("/events/export", eventHandler.Export)
		open.GET("/events/:id", eventHandler.Get)
		admin.PUT("/events/:id", eventHandler.Update)
		admin.DELETE("/events/:id", eventHandler.Delete)

		// Flyers
		admin.POST("/uploads", uploadHandler.Upload)
		admin.POST("/events/:id/flyer", uploadHandler.UploadForEvent)

		// Questions and options
		open.GET("/events/:id/questions", questionHandler.List)
		admin.POST("/events/:id/questions", questionHandler.Create)
		admin.PUT("/events/:id/questions/:questionId", questionHandler.Update)
		admin.DELETE("/events/:id/questions/:questionId", questionHandler.Delete)
		open.GET("/events/:id/questions/:questionId/options", questionHandler.ListOptions)
		admin.POST("/events/:id/questions/:questionId/options", questionHandler.CreateOption)
		admin.PUT("/events/:id/questions/:questionId/options/:optionId", questionHandler.UpdateOption)
		admin.DELETE("/events/:id/questions/:questionId/options/:optionId", questionHandler.DeleteOption)

		// Responses: submit is public; single-response routes take admin or edit token.
		open.POST("/events/:id/responses", responseHandler.Submit)
		admin.GET("/events/:id/responses", responseHandler.List)
		admin.GET("/events/:id/responses/export", responseHandler.Export)
		open.GET("/events/:id/responses/:responseId", responseHandler.Get)
		open.PUT("/events/:id/responses/:responseId", responseHandler.Update)
		open.DELETE("/events/:id/responses/:responseId", responseHandler.Delete)
	}

	return router
}
