package log_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datamill-io/datamill/pkg/api"
	"github.com/datamill-io/datamill/pkg/log"
)

func TestTypedAttrs(t *testing.T) {
	as := assert.New(t)

	attr := log.JobID(api.JobID("job-1"))
	as.Equal("job_id", attr.Key)
	as.Equal("job-1", attr.Value.String())

	attr = log.FlowID(api.FlowID("daily-news"))
	as.Equal("flow_id", attr.Key)
	as.Equal("daily-news", attr.Value.String())

	attr = log.Status(api.JobRunning)
	as.Equal("status", attr.Key)
	as.Equal("running", attr.Value.String())

	attr = log.Turn(3)
	as.Equal("turn", attr.Key)
	as.Equal(int64(3), attr.Value.Int64())
}

func TestErrorAttr(t *testing.T) {
	as := assert.New(t)

	attr := log.Error(errors.New("boom"))
	as.Equal("error", attr.Key)
	as.Equal("boom", attr.Value.String())

	attr = log.Error(nil)
	as.Equal("", attr.Value.String())
	as.Equal(slog.KindString, attr.Value.Kind())
}
