package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersAll(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NotNil(t, m)

	m.LoginAttemptsTotal.WithLabelValues("sso-cas", "success").Inc()
	m.MemoHitsTotal.WithLabelValues("sso-cas").Inc()
	m.SessionsEstablishedTotal.Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.LoginAttemptsTotal.WithLabelValues("sso-cas", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MemoHitsTotal.WithLabelValues("sso-cas")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsEstablishedTotal))
}

func TestMetrics_Handler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.LoginAttemptsTotal.WithLabelValues("local", "success").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "centralauth_login_attempts_total")
}
