// Package datamill is a durable content-pipeline engine: flows of
// fetch, AI, and publish steps executed as independently scheduled,
// crash-recoverable jobs
package datamill

const (
	// Name is the service name reported by the API
	Name = "datamill"

	// Version is the engine release version
	Version = "0.1.0"
)
