package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/datamill-io/datamill/internal/store"
	"github.com/datamill-io/datamill/pkg/api"
)

var (
	ErrListFlows  = errors.New("failed to list flows")
	ErrSaveFlow   = errors.New("failed to save flow")
	ErrDeleteFlow = errors.New("failed to delete flow")
)

func (s *Server) listFlows(c *gin.Context) {
	flows, err := s.engine.ListFlows(c.Request.Context())
	if err != nil {
		internalError(c, ErrListFlows, err)
		return
	}

	c.JSON(http.StatusOK, api.FlowsListResponse{
		Flows: flows,
		Count: len(flows),
	})
}

func (s *Server) putFlow(c *gin.Context) {
	flowID := api.SanitizeID(api.FlowID(c.Param("flowID")))
	if flowID == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  "Valid flow ID is required",
			Status: http.StatusBadRequest,
		})
		return
	}

	var flow api.Flow
	if err := c.ShouldBindJSON(&flow); err != nil {
		badRequest(c, errors.Join(ErrInvalidJSON, err))
		return
	}
	flow.ID = flowID

	if err := s.engine.PutFlow(c.Request.Context(), &flow); err != nil {
		badRequest(c, err)
		return
	}

	c.JSON(http.StatusCreated, api.FlowSavedResponse{
		Message: "Flow saved",
		FlowID:  flowID,
	})
}

func (s *Server) getFlow(c *gin.Context) {
	flowID := api.FlowID(c.Param("flowID"))

	flow, err := s.engine.GetFlow(c.Request.Context(), flowID)
	if err == nil {
		c.JSON(http.StatusOK, flow)
		return
	}

	if errors.Is(err, store.ErrFlowNotFound) {
		notFound(c, store.ErrFlowNotFound, flowID)
		return
	}
	internalError(c, ErrListFlows, err)
}

func (s *Server) deleteFlow(c *gin.Context) {
	flowID := api.FlowID(c.Param("flowID"))

	if err := s.engine.DeleteFlow(c.Request.Context(), flowID); err != nil {
		internalError(c, ErrDeleteFlow, err)
		return
	}
	c.Status(http.StatusNoContent)
}
