// Package server implements the HTTP API for the pipeline engine
//
// This package provides REST endpoints for managing flows, triggering
// and inspecting jobs, health checks, and WebSocket event streaming
package server
