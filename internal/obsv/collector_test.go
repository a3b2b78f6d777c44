package obsv

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersWithoutPanicking(t *testing.T) {
	require.NotPanics(t, func() { New() })
}

func TestCollector_OrderAcceptedIncrementsCounter(t *testing.T) {
	c := New()
	c.OrderAccepted("AAPL", "buy", "limit")
	c.OrderAccepted("AAPL", "buy", "limit")

	assert.Equal(t, float64(2), testutil.ToFloat64(c.OrdersAccepted.WithLabelValues("AAPL", "buy", "limit")))
}

func TestCollector_OrdersRejectedTracksByCode(t *testing.T) {
	c := New()
	c.OrdersRejected("AAPL", "order_size")

	assert.Equal(t, float64(1), testutil.ToFloat64(c.OrdersRejectedCounter.WithLabelValues("AAPL", "order_size")))
}

func TestCollector_TradeExecutedAndVolume(t *testing.T) {
	c := New()
	c.TradeExecuted("AAPL")
	c.TradeVolumeTraded("AAPL", 100)
	c.TradeVolumeTraded("AAPL", 50)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.TradesTotal.WithLabelValues("AAPL")))
	assert.Equal(t, float64(150), testutil.ToFloat64(c.TradeVolume.WithLabelValues("AAPL")))
}

func TestCollector_QueueDepthAndCoordinatorOutstandingSetGauges(t *testing.T) {
	c := New()
	c.QueueDepthSet("validate", 7)
	c.CoordinatorOutstandingSet(3)

	assert.Equal(t, float64(7), testutil.ToFloat64(c.QueueDepth.WithLabelValues("validate")))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.CoordinatorOutstanding))
}

func TestCollector_PhaseStateSetZeroesInactiveStates(t *testing.T) {
	c := New()
	c.PhaseStateSet("AAPL", "continuous", []string{"closed", "pre_open", "continuous"})

	assert.Equal(t, float64(1), testutil.ToFloat64(c.PhaseState.WithLabelValues("AAPL", "continuous")))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.PhaseState.WithLabelValues("AAPL", "closed")))
}

func TestCollector_FanoutDroppedAdd(t *testing.T) {
	c := New()
	c.FanoutDroppedAdd(5)
	assert.Equal(t, float64(5), testutil.ToFloat64(c.FanoutDropped))
}

func TestCollector_HandlerServesMetrics(t *testing.T) {
	c := New()
	c.OrderAccepted("AAPL", "buy", "limit")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "exchange_orders_accepted_total")
}

func TestTimer_ElapsedMsIsNonNegative(t *testing.T) {
	timer := NewTimer()
	assert.GreaterOrEqual(t, timer.ElapsedMs(), 0.0)
}
