// Package server is the reference sync authority: an HTTP server
// speaking the pull/push protocol with bearer-token auth, plus a
// WebSocket monitor that streams sync activity. State is held in
// memory per user, which is enough for development, tests, and small
// single-node deployments.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	gosync "sync"
	"time"

	"github.com/gin-gonic/gin"

	"liftlog/internal/auth"
	"liftlog/internal/sync"
)

// Config holds server configuration.
type Config struct {
	// Port to listen on.
	Port int

	// JWTSecret signs and verifies bearer tokens.
	JWTSecret []byte

	// TokenTTL bounds tokens minted by the dev token endpoint.
	TokenTTL time.Duration

	// Logger for server activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults. The secret must still be
// set by the caller.
func DefaultConfig() *Config {
	return &Config{
		Port:     8484,
		TokenTTL: 24 * time.Hour,
		Logger:   log.New(os.Stderr, "[server] ", log.LstdFlags),
	}
}

// Server serves the sync protocol over HTTP.
type Server struct {
	config  *Config
	state   *state
	monitor *monitor
	http    *http.Server

	wg gosync.WaitGroup
}

// New creates a server. The config logger defaults to stderr.
func New(config *Config) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if len(config.JWTSecret) == 0 {
		return nil, fmt.Errorf("jwt secret must be set")
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[server] ", log.LstdFlags)
	}
	s := &Server{
		config:  config,
		state:   newState(),
		monitor: newMonitor(config.Logger),
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws", gin.WrapF(s.monitor.handleWebSocket))
	router.POST("/v1/auth/token", s.handleToken)

	v1 := router.Group("/v1/sync", s.requireAuth())
	v1.POST("/pull", s.handlePull)
	v1.POST("/push", s.handlePush)

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s, nil
}

// Handler returns the server's HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.monitor.run(ctx)
	}()

	errc := make(chan error, 1)
	go func() {
		s.config.Logger.Printf("listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.http.Shutdown(shutdownCtx)
	s.wg.Wait()
	s.config.Logger.Println("stopped")
	return err
}

// requireAuth verifies the bearer token and stashes the principal on
// the request context.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		principal, err := auth.ParseToken(s.config.JWTSecret, header[len(prefix):])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("principal", principal)
		c.Next()
	}
}

func principalFrom(c *gin.Context) auth.Principal {
	p, _ := c.MustGet("principal").(auth.Principal)
	return p
}

// handleToken mints a development token for the given user. A real
// deployment replaces this with its identity provider.
func (s *Server) handleToken(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := auth.MintToken(s.config.JWTSecret, req.UserID, s.config.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token mint failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) handlePull(c *gin.Context) {
	p := principalFrom(c)
	var req sync.PullRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	changes, ts := s.state.changesSince(p.UserID, req.LastPulledAt)
	s.config.Logger.Printf("pull user=%s since=%d -> %d changes",
		p.UserID, req.LastPulledAt, changes.Count())
	s.monitor.notePull(p.UserID, changes.Count(), s.state.recordCount(p.UserID))
	c.JSON(http.StatusOK, sync.PullResponse{Changes: changes, Timestamp: ts})
}

func (s *Server) handlePush(c *gin.Context) {
	p := principalFrom(c)
	var req sync.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ts := s.state.apply(p.UserID, req.Changes)
	s.config.Logger.Printf("push user=%s applied %d changes", p.UserID, req.Changes.Count())
	s.monitor.notePush(p.UserID, req.Changes.Count(), s.state.recordCount(p.UserID))
	c.JSON(http.StatusOK, sync.PushResponse{Timestamp: ts})
}
