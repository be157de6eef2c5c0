// Package api defines the shared data model for the Datamill pipeline
// engine: flows and their step configurations, jobs and their status
// machine, the packets that move between steps, and the chat message and
// tool structures used by AI steps
package api
