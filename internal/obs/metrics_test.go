package obs

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTransition(t *testing.T) {
	m := NewMetrics()

	m.ObserveTransition("accept", "ok", 5*time.Millisecond)
	m.ObserveTransition("accept", "conflict", time.Millisecond)
	m.ObserveTransition("accept", "ok", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("accept", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("accept", "conflict")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.transitionDuration))
}

func TestRequestStarted(t *testing.T) {
	m := NewMetrics()

	done := m.RequestStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpInFlight))
	done("GET", "/api/incidents/:id", "200", 10*time.Millisecond)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/incidents/:id", "200")))
}

func TestObserveDelivery(t *testing.T) {
	m := NewMetrics()
	m.ObserveDelivery("sent", 3)
	m.ObserveDelivery("failed", 0)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.notificationsTotal.WithLabelValues("sent")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.notificationsTotal))
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.ObserveTransition("reject", "forbidden", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `incident_transitions_total{action="reject",outcome="forbidden"} 1`))
	assert.Contains(t, body, "go_goroutines")
}
