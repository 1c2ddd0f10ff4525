package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveDecision("entry", "bought")
		r.ObserveExit("stop_loss")
		r.ObserveGateway("buy", "ok", time.Millisecond)
		r.SetCapital(1)
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	r := New()
	r.ObserveDecision("entry", "bought")
	r.ObserveVenue("jupiter", "ok")
	r.ObserveGateway("buy", "ok", 42*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `solbot_decisions_total{outcome="bought",path="entry"} 1`)
	assert.Contains(t, string(body), `solbot_venue_attempts_total{result="ok",venue="jupiter"} 1`)
	assert.Contains(t, string(body), "solbot_gateway_latency_ms_bucket")
}
