package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/datamill-io/datamill/internal/engine"
	"github.com/datamill-io/datamill/pkg/api"
)

// Server implements the HTTP API server for the pipeline engine
type Server struct {
	engine  *engine.Engine
	sockets map[*Client]struct{}
	mu      sync.Mutex
}

var ErrInvalidJSON = errors.New("invalid JSON payload")

// NewServer creates a new HTTP API server over the orchestrator
func NewServer(eng *engine.Engine) *Server {
	return &Server{
		engine:  eng,
		sockets: map[*Client]struct{}{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API
// endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", s.handleHealth)

	// Flow endpoints
	flow := router.Group("/flow")
	{
		flow.GET("", s.listFlows)
		flow.PUT("/:flowID", s.putFlow)
		flow.GET("/:flowID", s.getFlow)
		flow.DELETE("/:flowID", s.deleteFlow)
		flow.POST("/:flowID/run", s.runFlow)
		flow.GET("/:flowID/jobs", s.listFlowJobs)
	}

	// Job endpoints
	job := router.Group("/job")
	{
		job.GET("", s.listJobs)
		job.GET("/:jobID", s.getJob)
		job.POST("/:jobID/cancel", s.cancelJob)
		job.DELETE("/:jobID", s.deleteJob)
	}

	// WebSocket
	router.GET("/ws", s.handleWebSocket)

	return router
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets[c] = struct{}{}
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sockets, c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, api.ErrorResponse{
		Error:  err.Error(),
		Status: http.StatusBadRequest,
	})
}

func notFound(c *gin.Context, err error, id any) {
	c.JSON(http.StatusNotFound, api.ErrorResponse{
		Error:  fmt.Sprintf("%v: %v", err, id),
		Status: http.StatusNotFound,
	})
}

func internalError(c *gin.Context, wrap error, err error) {
	c.JSON(http.StatusInternalServerError, api.ErrorResponse{
		Error:  fmt.Sprintf("%s: %v", wrap, err),
		Status: http.StatusInternalServerError,
	})
}
