package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/datamill-io/datamill/internal/engine"
	"github.com/datamill-io/datamill/internal/store"
	"github.com/datamill-io/datamill/pkg/api"
)

var (
	ErrListJobs  = errors.New("failed to list jobs")
	ErrCancelJob = errors.New("failed to cancel job")
	ErrDeleteJob = errors.New("failed to delete job")
)

func (s *Server) runFlow(c *gin.Context) {
	flowID := api.FlowID(c.Param("flowID"))

	var req api.RunFlowRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, errors.Join(ErrInvalidJSON, err))
			return
		}
	}

	jobID, err := s.engine.CreateAndRun(
		c.Request.Context(), flowID, req.Context,
	)
	if err == nil {
		c.JSON(http.StatusAccepted, api.RunStartedResponse{
			Message: "Run started",
			JobID:   jobID,
		})
		return
	}

	if errors.Is(err, store.ErrFlowNotFound) {
		notFound(c, store.ErrFlowNotFound, flowID)
		return
	}
	badRequest(c, err)
}

func (s *Server) getJob(c *gin.Context) {
	jobID := api.JobID(c.Param("jobID"))

	job, err := s.engine.GetJob(c.Request.Context(), jobID)
	if err == nil {
		c.JSON(http.StatusOK, job)
		return
	}

	if errors.Is(err, store.ErrJobNotFound) {
		notFound(c, store.ErrJobNotFound, jobID)
		return
	}
	internalError(c, ErrListJobs, err)
}

func (s *Server) listJobs(c *gin.Context) {
	s.respondJobs(c, "")
}

func (s *Server) listFlowJobs(c *gin.Context) {
	s.respondJobs(c, api.FlowID(c.Param("flowID")))
}

func (s *Server) respondJobs(c *gin.Context, flowID api.FlowID) {
	jobs, err := s.engine.ListJobs(c.Request.Context(), flowID)
	if err != nil {
		internalError(c, ErrListJobs, err)
		return
	}

	status := api.JobStatus(c.Query("status"))
	digests := make([]*api.JobDigest, 0, len(jobs))
	for _, job := range jobs {
		if status != "" && job.Status != status {
			continue
		}
		digests = append(digests, job.Digest())
	}

	c.JSON(http.StatusOK, api.JobsListResponse{
		Jobs:  digests,
		Count: len(digests),
	})
}

// cancelJob marks a job failed with a cancellation reason. Any task
// that later fires for the job becomes a no-op
func (s *Server) cancelJob(c *gin.Context) {
	jobID := api.JobID(c.Param("jobID"))

	err := s.engine.FailJob(
		c.Request.Context(), jobID, api.FailureCancelled,
		"cancelled by operator",
	)
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	if errors.Is(err, store.ErrJobNotFound) {
		notFound(c, store.ErrJobNotFound, jobID)
		return
	}
	internalError(c, ErrCancelJob, err)
}

func (s *Server) deleteJob(c *gin.Context) {
	jobID := api.JobID(c.Param("jobID"))

	err := s.engine.DeleteJob(c.Request.Context(), jobID)
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	case errors.Is(err, store.ErrJobNotFound):
		notFound(c, store.ErrJobNotFound, jobID)
	case errors.Is(err, engine.ErrJobActive):
		c.JSON(http.StatusConflict, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusConflict,
		})
	default:
		internalError(c, ErrDeleteJob, err)
	}
}
