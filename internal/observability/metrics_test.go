package observability

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Independent(t *testing.T) {
	a := NewMetrics("")
	b := NewMetrics("")

	a.RecordTick("BTC_USDT-bot")
	a.RecordTick("BTC_USDT-bot")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.TicksProcessed.WithLabelValues("BTC_USDT-bot")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.TicksProcessed.WithLabelValues("BTC_USDT-bot")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordTick("x")
	m.RecordPhase("x", "READY", 4)
	m.RecordOrderError("x", "submit")
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("test")
	m.RecordPhase("BTC_USDT-bot", "READY", 4)
	m.SetRealizedProfit("BTC_USDT-bot", 1.5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `test_fsm_current_phase{agent="BTC_USDT-bot"} 4`)
	assert.Contains(t, string(body), `test_orders_realized_profit{agent="BTC_USDT-bot"} 1.5`)
}
