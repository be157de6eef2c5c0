// Package mcp exposes the orchestrator over the Model Context Protocol
// so AI assistants can trigger and inspect flow runs with the same
// operations the HTTP API provides
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/datamill-io/datamill"
	"github.com/datamill-io/datamill/internal/engine"
	"github.com/datamill-io/datamill/pkg/api"
)

// Server wraps an MCP server whose tools delegate to the engine
type Server struct {
	engine *engine.Engine
	mcp    *server.MCPServer
	sse    *server.SSEServer
}

// NewServer creates the MCP tool surface for the given engine
func NewServer(eng *engine.Engine) *Server {
	s := &Server{
		engine: eng,
		mcp: server.NewMCPServer(
			datamill.Name, datamill.Version,
			server.WithToolCapabilities(true),
		),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying server for transport mounting
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Start serves the MCP tools over SSE on the given address, blocking
// until the listener fails or Shutdown is called
func (s *Server) Start(addr string) error {
	s.sse = server.NewSSEServer(s.mcp)
	return s.sse.Start(addr)
}

// Shutdown stops the SSE transport if Start was called
func (s *Server) Shutdown(ctx context.Context) error {
	if s.sse == nil {
		return nil
	}
	return s.sse.Shutdown(ctx)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(
		mcp.NewTool(
			"run_flow",
			mcp.WithDescription(
				"Trigger a run of a stored flow and return the job ID",
			),
			mcp.WithString("flow_id", mcp.Required(),
				mcp.Description("The ID of the flow to run")),
			mcp.WithString("context",
				mcp.Description("Optional trigger context recorded on the job")),
		),
		s.handleRunFlow,
	)

	s.mcp.AddTool(
		mcp.NewTool(
			"get_job",
			mcp.WithDescription("Fetch the current state of a job"),
			mcp.WithString("job_id", mcp.Required(),
				mcp.Description("The ID of the job to inspect")),
		),
		s.handleGetJob,
	)

	s.mcp.AddTool(
		mcp.NewTool(
			"list_flows",
			mcp.WithDescription("List the stored flow definitions"),
		),
		s.handleListFlows,
	)
}

func (s *Server) handleRunFlow(
	ctx context.Context, request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}

	flowID, ok := args["flow_id"].(string)
	if !ok || flowID == "" {
		return mcp.NewToolResultError("missing required parameter: flow_id"), nil
	}
	trigger, _ := args["context"].(string)

	jobID, err := s.engine.CreateAndRun(ctx, api.FlowID(flowID), trigger)
	if err != nil {
		return mcp.NewToolResultError(
			fmt.Sprintf("failed to run flow: %v", err),
		), nil
	}

	return jsonResult(&api.RunStartedResponse{
		Message: "flow run started",
		JobID:   jobID,
	})
}

func (s *Server) handleGetJob(
	ctx context.Context, request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}

	jobID, ok := args["job_id"].(string)
	if !ok || jobID == "" {
		return mcp.NewToolResultError("missing required parameter: job_id"), nil
	}

	job, err := s.engine.GetJob(ctx, api.JobID(jobID))
	if err != nil {
		return mcp.NewToolResultError(
			fmt.Sprintf("failed to get job: %v", err),
		), nil
	}
	return jsonResult(job)
}

func (s *Server) handleListFlows(
	ctx context.Context, _ mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	flows, err := s.engine.ListFlows(ctx)
	if err != nil {
		return mcp.NewToolResultError(
			fmt.Sprintf("failed to list flows: %v", err),
		), nil
	}
	return jsonResult(&api.FlowsListResponse{
		Flows: flows,
		Count: len(flows),
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(
			fmt.Sprintf("failed to encode result: %v", err),
		), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
