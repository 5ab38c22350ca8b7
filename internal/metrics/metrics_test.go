package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/SergeiKhy/sourcetrace/internal/metrics"
)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	m.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestMetrics_Record(t *testing.T) {
	m := metrics.New("sourcetrace")

	m.RecordClick("IOS")
	m.RecordClick("IOS")
	m.RecordInstall("ORGANIC", "ANDROID")
	m.RecordAuthFailure("revoked")
	m.RecordSkanPostback()

	body := scrape(t, m)
	assert.Contains(t, body, `sourcetrace_clicks_total{platform="IOS"} 2`)
	assert.Contains(t, body, `sourcetrace_installs_total{platform="ANDROID",status="ORGANIC"} 1`)
	assert.Contains(t, body, `sourcetrace_ingestion_auth_failures_total{reason="revoked"} 1`)
	assert.Contains(t, body, "sourcetrace_skan_postbacks_total 1")
}

// TestMetrics_NilSafe nil-метрики не должны паниковать
func TestMetrics_NilSafe(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.RecordClick("IOS")
		m.RecordEvent("SIGNUP", "ORGANIC")
		m.ObserveHTTP("GET", "/r/:slug", 302, time.Millisecond)
	})
}

// TestMetrics_SeparateRegistries два экземпляра не конфликтуют при регистрации
func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		metrics.New("sourcetrace")
		metrics.New("sourcetrace")
	})
}
