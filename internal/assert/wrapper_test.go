package assert_test

import (
	"testing"
	"time"

	"github.com/datamill-io/datamill/internal/assert"
	"github.com/datamill-io/datamill/internal/config"
	"github.com/datamill-io/datamill/pkg/api"
)

func TestJobAssertions(t *testing.T) {
	as := assert.New(t)

	job := &api.Job{
		ID:     "job-1",
		FlowID: "flow-1",
		Status: api.JobRunning,
	}
	as.JobStatus(job, api.JobRunning)

	failed := job.SetStatus(api.JobFailed).
		SetFailure(api.FailureException, "step panic: boom")
	as.JobFailed(failed, api.FailureException, "boom")
}

func TestFlowAssertions(t *testing.T) {
	as := assert.New(t)

	as.FlowValid(&api.Flow{
		ID: "flow-1",
		Steps: []*api.FlowStep{{
			ID:    "fetch",
			Type:  api.StepTypeFetch,
			Fetch: &api.FetchConfig{Source: "rss"},
		}},
	})

	as.FlowInvalid(&api.Flow{ID: "flow-2"}, "no steps")
}

func TestConfigAssertions(t *testing.T) {
	as := assert.New(t)

	as.ConfigValid(config.NewDefaultConfig())

	bad := config.NewDefaultConfig()
	bad.Workers = 0
	as.ConfigInvalid(bad, "worker count")
}

func TestEventually(t *testing.T) {
	as := assert.New(t)

	calls := 0
	as.Eventually(func() bool {
		calls++
		return calls >= 2
	}, time.Second, "condition never passed")
}
