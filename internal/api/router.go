// internal/api/router.go
package api

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Corphon/BookFlow/internal/auth"
	"github.com/Corphon/BookFlow/internal/config"
	"github.com/Corphon/BookFlow/internal/di"
	"github.com/Corphon/BookFlow/internal/models"
	"github.com/Corphon/BookFlow/internal/services"
	"github.com/Corphon/BookFlow/internal/utils"
)

// Server bundles the router with the long-lived pieces that need shutdown.
type Server struct {
	Engine  *gin.Engine
	Queues  *QueueHub
	limiter *RateLimiter
}

// Close stops background workers and closes open sockets.
func (s *Server) Close() {
	s.Queues.Shutdown()
	s.limiter.Stop()
}

// SetupRouter builds the HTTP API from services registered in container.
func SetupRouter(cfg *config.Config, container *di.Container) (*Server, error) {
	log, err := di.Resolve[*utils.Logger](container, di.Logger)
	if err != nil {
		return nil, err
	}
	chapters, err := di.Resolve[*services.ChapterService](container, di.Chapters)
	if err != nil {
		return nil, fmt.Errorf("chapter service not initialised: %w", err)
	}
	users, err := di.Resolve[*auth.Table](container, di.Users)
	if err != nil {
		return nil, fmt.Errorf("user table not initialised: %w", err)
	}
	tokens, err := di.Resolve[*auth.TokenConfig](container, di.Tokens)
	if err != nil {
		return nil, fmt.Errorf("token config not initialised: %w", err)
	}

	switch {
	case gin.Mode() == gin.TestMode:
	case cfg.DebugMode:
		gin.SetMode(gin.DebugMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	rh := NewResponseHelper(log)
	hub := NewQueueHub(chapters, log)
	limiter := NewRateLimiter()
	handler := &Handler{
		Chapters: chapters,
		Users:    users,
		Tokens:   tokens,
		Queues:   hub,
		Response: rh,
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(log.With("component", "http")))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining"},
		MaxAge:          12 * time.Hour,
	}))

	authed := AuthMiddleware(tokens, rh)
	writerOnly := RequireRole(rh, models.RoleWriter)

	r.GET("/ws/queue", authed, hub.Serve)

	api := r.Group("/api")
	{
		api.GET("/health", handler.Health)
		api.POST("/auth/login", RateLimit(limiter, 20, time.Minute, ByClientIP), handler.Login)

		secured := api.Group("", authed)
		{
			secured.GET("/auth/me", handler.Me)
			secured.GET("/queue", handler.GetQueue)

			chaptersGroup := secured.Group("/chapters")
			{
				chaptersGroup.GET("/:id", handler.OpenChapter)
				chaptersGroup.PUT("/:id/draft", writerOnly, handler.SaveDraft)
				chaptersGroup.POST("/:id/approve", writerOnly, handler.Approve)
				chaptersGroup.POST("/:id/review", RequireRole(rh, models.RoleReviewer), handler.SubmitReview)
				chaptersGroup.POST("/:id/publish", RequireRole(rh, models.RoleEditor), handler.Publish)
			}

			secured.POST("/generate",
				RequireRole(rh, models.RoleReader),
				RateLimit(limiter, 5, time.Minute, ByUser),
				handler.Generate)

			secured.GET("/published", handler.ListPublished)
			secured.GET("/published/:id", handler.ReadPublished)
			secured.GET("/books", handler.ListBooks)
			secured.GET("/search", handler.FullTextSearch)
		}
	}

	return &Server{Engine: r, Queues: hub, limiter: limiter}, nil
}
