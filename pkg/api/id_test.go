package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datamill-io/datamill/pkg/api"
)

func TestNewJobIDUnique(t *testing.T) {
	first := api.NewJobID()
	second := api.NewJobID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, api.FlowID("daily-news"),
		api.SanitizeID(api.FlowID("Daily News")))
	assert.Equal(t, api.StepID("fetch-items"),
		api.SanitizeID(api.StepID("Fetch Items!")))
	assert.Equal(t, api.FlowID("a.b_c+d"),
		api.SanitizeID(api.FlowID("A.B_C+D")))
	assert.Equal(t, api.FlowID("trimmed"),
		api.SanitizeID(api.FlowID("--trimmed--")))
	assert.Equal(t, api.FlowID(""),
		api.SanitizeID(api.FlowID("###")))
}
