package assert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/datamill-io/datamill/internal/config"
	"github.com/datamill-io/datamill/pkg/api"
)

// Wrapper wraps testify assertions with Datamill-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
	Require *assert.Assertions
}

// DefaultRetryInterval is the default polling interval for Eventually
// checks
const DefaultRetryInterval = 100 * time.Millisecond

// New creates a new test assertion wrapper with both assert and require
// from testify plus Datamill-specific helpers
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    assert.New(t),
	}
}

// JobStatus asserts the status of a job
func (w *Wrapper) JobStatus(job *api.Job, expected api.JobStatus) {
	w.Helper()
	w.Equal(expected, job.Status)
}

// JobFailed asserts that a job failed with the given reason code
func (w *Wrapper) JobFailed(
	job *api.Job, code api.FailureCode, contains string,
) {
	w.Helper()
	w.Equal(api.JobFailed, job.Status)
	w.Equal(code, job.Failure)
	if contains != "" {
		w.Contains(job.Error, contains)
	}
}

// FlowValid asserts that a flow definition passes validation
func (w *Wrapper) FlowValid(flow *api.Flow) {
	w.Helper()
	w.NoError(flow.Validate())
	w.NotEmpty(flow.ID)
	w.NotEmpty(flow.Steps)
}

// FlowInvalid asserts that a flow definition fails validation and
// returns the validation error
func (w *Wrapper) FlowInvalid(flow *api.Flow, contains string) error {
	w.Helper()
	err := flow.Validate()
	w.Error(err)
	if err != nil && contains != "" {
		w.Contains(err.Error(), contains)
	}
	return err
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.True(cfg.APIPort > 0 && cfg.APIPort <= 65535)
	w.True(cfg.Workers > 0)
}

// ConfigInvalid asserts that a configuration is invalid
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	w.Error(err)
	if contains != "" {
		w.Contains(err.Error(), contains)
	}
}

// Eventually runs a condition repeatedly until it passes or times out
func (w *Wrapper) Eventually(
	condition func() bool, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
	w.Fail(msg, args...)
}

// EventuallyWithError runs a condition that returns an error until it
// succeeds or times out
func (w *Wrapper) EventuallyWithError(
	condition func() error, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		err := condition()
		if err == nil {
			return
		}
		lastErr = err
		time.Sleep(DefaultRetryInterval)
	}
	if lastErr != nil {
		w.Fail(msg+": last error: "+lastErr.Error(), args...)
		return
	}
	w.Fail(msg, args...)
}
