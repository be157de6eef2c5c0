package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/datamill-io/datamill"
	"github.com/datamill-io/datamill/pkg/api"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Service: datamill.Name,
		Version: datamill.Version,
		Status:  "healthy",
	})
}
