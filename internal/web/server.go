// Package web provides an HTTP status server for the relay-bank daemon.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sweeney/relay-bank/internal/status"
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{router: router, tracker: tracker}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/index.html", s.handleIndex)
	s.router.GET("/index.json", s.handleJSON)
	s.router.GET("/healthz", s.handleHealth)

	api := s.router.Group("/api/v1")
	{
		api.GET("/channels", s.handleChannels)
		api.GET("/channels/:id", s.handleChannel)
	}
}

// Handler returns the HTTP handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(c *gin.Context) {
	snap := s.tracker.Snapshot()
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := renderHTML(c.Writer, snap); err != nil {
		c.Error(err)
	}
}

func (s *Server) handleJSON(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleChannels(c *gin.Context) {
	snap := s.tracker.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"mask":     status.FormatMask(snap.Mask),
		"in_sync":  snap.InSync,
		"channels": status.BuildChannels(snap),
	})
}

func (s *Server) handleChannel(c *gin.Context) {
	var uri struct {
		ID int `uri:"id" binding:"min=0,max=15"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid channel",
			"details": err.Error(),
		})
		return
	}
	snap := s.tracker.Snapshot()
	c.JSON(http.StatusOK, status.BuildChannels(snap)[uri.ID])
}

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.tracker.Snapshot()
	if snap.Faulted() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "fault",
			"fault":  snap.Fault,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
