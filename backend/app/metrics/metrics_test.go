package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.IncSubmitted()
	m.IncTargetTransition("expired", 2)
	m.ObservePoll("commands", 3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "patchpilot_action_submitted_total 1")
	assert.Contains(t, string(body), `patchpilot_target_transitions_total{status="expired"} 2`)
	assert.Contains(t, string(body), "patchpilot_poll_commands_dispatched_total 3")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.IncSubmitted()
	m.IncSweep("ok")
	m.ObservePoll("empty", 0)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}
