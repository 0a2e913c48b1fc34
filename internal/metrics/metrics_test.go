package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()
	m.ObserveTool("get_weather_data", "success", 2*time.Second)
	m.ObserveTool("get_weather_data", "no_data", time.Second)
	m.ObserveTool("get_weather_data", "success", time.Second)
	m.ReleaseFailed("browser")
	m.ObserveRPC("tools/call", 0)
	m.ObserveRPC("bogus", -32601)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.toolInvocations.WithLabelValues("get_weather_data", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.releaseFailures.WithLabelValues("browser")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rpcRequests.WithLabelValues("bogus", "-32601")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.toolDuration))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveTool("execute_code", "success", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `planner_tool_invocations_total{outcome="success",tool="execute_code"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
