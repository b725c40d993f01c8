package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Router builds the management API
func (s *TCPServer) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/health", s.handleHealth)
	router.GET("/sessions", s.handleSessions)
	router.GET("/sessions/:id", s.handleSession)

	if s.hub != nil {
		router.GET("/ws/events", s.hub.HandleEvents)
		router.GET("/ws/stats", s.hub.HandleStats)
	}
	return router
}

func (s *TCPServer) startHTTPServer() {
	addr := fmt.Sprintf(":%d", s.config.HTTPPort)
	log.Info().Str("addr", addr).Msg("HTTP server listening")

	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	<-s.ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}

func (s *TCPServer) handleHealth(c *gin.Context) {
	listen := ""
	if addr := s.Addr(); addr != nil {
		listen = addr.String()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"gateway_id": s.config.GatewayID,
		"protocol":   s.adapter.Protocol(),
		"listen":     listen,
		"sessions":   s.sessions.Count(),
	})
}

func (s *TCPServer) handleSessions(c *gin.Context) {
	c.JSON(http.StatusOK, s.sessions.Snapshot())
}

func (s *TCPServer) handleSession(c *gin.Context) {
	session, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, session.Info())
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
