// Package api serves the HTTP API and the websocket endpoint.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/showtrack/internal/api/handler"
	"github.com/jon4hz/showtrack/internal/config"
	"github.com/jon4hz/showtrack/internal/engine"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	cfg       *config.Config
	ginEngine *gin.Engine
	engine    *engine.Engine
}

func New(cfg *config.Config, e *engine.Engine) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if e == nil {
		return nil, fmt.Errorf("engine is required")
	}

	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		cfg:       cfg,
		ginEngine: ginEngine,
		engine:    e,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	h := handler.New(s.engine)

	s.ginEngine.GET("/ws", h.ServeWS)

	api := s.ginEngine.Group("/api")

	profile := api.Group("/profiles/:profile")
	profile.GET("/shows", h.GetShows)
	profile.GET("/shows/:show", h.GetShowDetails)
	profile.PUT("/shows/:show/status", h.UpdateShowStatus)
	profile.POST("/shows/:show/recompute", h.RecomputeShow)
	profile.PUT("/seasons/:season/status", h.UpdateSeasonStatus)
	profile.POST("/seasons/:season/recompute", h.RecomputeSeason)
	profile.PUT("/episodes/:episode/status", h.UpdateEpisodeStatus)
	profile.GET("/unwatched", h.GetUnwatchedEpisodes)
	profile.GET("/movies", h.GetMovies)
	profile.PUT("/movies/:movie/status", h.UpdateMovieStatus)

	profile.POST("/favorites/shows", h.AddShowFavorite)
	profile.DELETE("/favorites/shows/:show", h.RemoveShowFavorite)
	profile.POST("/favorites/movies", h.AddMovieFavorite)
	profile.DELETE("/favorites/movies/:movie", h.RemoveMovieFavorite)

	api.GET("/loader/runs", h.GetLoaderRuns)
	api.GET("/loader/runs/:id", h.GetLoaderRun)
	api.GET("/jobs", h.GetJobs)
	api.POST("/jobs/:id/run", h.RunJob)

	api.GET("/webpush/vapid-key", h.GetVAPIDKey)
	api.POST("/accounts/:account/webpush/subscriptions", h.Subscribe)
	api.DELETE("/accounts/:account/webpush/subscriptions/:id", h.Unsubscribe)
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

// Run serves until ctx is done and then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "listen", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("Handled request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
