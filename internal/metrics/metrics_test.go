package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivechat/swarm/internal/broadcast"
)

func TestObserveRequest(t *testing.T) {
	c := NewCollector()
	c.ObserveRequest(http.MethodGet, "/api/v1/agents", 200, 5*time.Millisecond)
	c.ObserveRequest(http.MethodGet, "/api/v1/agents", 200, 7*time.Millisecond)
	c.ObserveRequest(http.MethodPost, "/api/v1/tasks", 422, time.Millisecond)

	families, err := c.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["swarm_http_requests_total"])
	assert.True(t, names["swarm_http_request_duration_seconds"])
}

func TestCountSweepIgnoresZero(t *testing.T) {
	c := NewCollector()
	c.CountSweep("handoff_expiry", 0)
	assert.Zero(t, testutil.CollectAndCount(c.sweeps))

	c.CountSweep("handoff_expiry", 3)
	assert.Equal(t, float64(3), testutil.ToFloat64(c.sweeps.WithLabelValues("handoff_expiry")))
}

func TestWrapEmitterCountsEvents(t *testing.T) {
	c := NewCollector()
	e := WrapEmitter(broadcast.NopEmitter{}, c)

	e.Emit(context.Background(), broadcast.EventTaskAssigned, nil)
	e.Emit(context.Background(), broadcast.EventTaskAssigned, nil)
	e.Emit(context.Background(), broadcast.EventTaskCompleted, nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.events.WithLabelValues(broadcast.EventTaskAssigned)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.events.WithLabelValues(broadcast.EventTaskCompleted)))
	require.NoError(t, e.Ping(context.Background()))
	require.NoError(t, e.Close())
}

func TestHandlerServesExposition(t *testing.T) {
	c := NewCollector()
	c.CountEvent("agent.status_changed")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swarm_events_total")
}
