package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradingfloor/exchange-core/internal/constraints"
	"github.com/tradingfloor/exchange-core/internal/coordinator"
	"github.com/tradingfloor/exchange-core/internal/fanout"
	"github.com/tradingfloor/exchange-core/internal/fees"
	"github.com/tradingfloor/exchange-core/internal/instrument"
	"github.com/tradingfloor/exchange-core/internal/matching"
	"github.com/tradingfloor/exchange-core/internal/orders"
	"github.com/tradingfloor/exchange-core/internal/phase"
	"github.com/tradingfloor/exchange-core/internal/position"
	"github.com/tradingfloor/exchange-core/internal/venue"
)

func newTestPipeline(t *testing.T, byRole map[constraints.Role][]constraints.Constraint) (*Pipeline, *venue.Exchange, *coordinator.Coordinator, *fanout.Hub) {
	t.Helper()
	positions := position.NewService()
	rates := venue.NewRateTracker()
	validator := constraints.NewValidator(byRole, positions, rates)
	schedule := []phase.Interval{{Start: 0, End: 24 * time.Hour, Phase: phase.Continuous}}
	feeSchedules := map[constraints.Role]fees.Schedule{
		constraints.RoleRetail: {MakerRebate: decimal.Zero, TakerFee: decimal.NewFromFloat(0.001)},
	}
	ex := venue.New(venue.Config{AllowSelfTrade: true, Schedule: schedule}, matching.MaximumVolumeStrategy{}, validator, feeSchedules, positions, rates, nil)
	require.NoError(t, ex.AddInstrument(instrument.Instrument{ID: "AAPL", Kind: instrument.KindSpot, TickSize: 0.01}))

	coord := coordinator.New(100, 2*time.Second)
	hub := fanout.NewHub(8)
	pl := New(Config{QueueDepth: 16, PhaseCheckInterval: time.Hour}, ex, validator, coord, hub, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	pl.Start(ctx)
	t.Cleanup(func() {
		pl.Stop()
		cancel()
		coord.Stop()
	})
	return pl, ex, coord, hub
}

func mustOrder(ex *venue.Exchange, teamID string, side orders.Side, price string, qty int64) *orders.Order {
	return &orders.Order{
		ID: teamID + "-" + price, InstrumentID: "AAPL", TeamID: teamID, Side: side, Type: orders.OrderTypeLimit,
		Price: decimal.RequireFromString(price), Quantity: qty, RemainingQty: qty,
	}
}

func TestPipeline_SubmitOrderCompletesAndPublishesAck(t *testing.T) {
	pl, ex, coord, hub := newTestPipeline(t, nil)
	team, err := ex.Teams.Register("RETAIL1", constraints.RoleRetail)
	require.NoError(t, err)

	sub, unsubscribe := hub.Subscribe(team.ID)
	defer unsubscribe()

	reqID, err := pl.SubmitOrder(team.ID, constraints.RoleRetail, mustOrder(ex, team.ID, orders.SideBuy, "150.00", 10))
	require.NoError(t, err)

	result, err := coord.Wait(context.Background(), reqID, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, result.Success)

	select {
	case ev := <-sub:
		assert.Equal(t, fanout.EventNewOrderAck, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a new_order_ack event to be published")
	}
}

func TestPipeline_SubmitOrderRejectedByConstraintCompletesWithError(t *testing.T) {
	byRole := map[constraints.Role][]constraints.Constraint{
		constraints.RoleRetail: {{Kind: constraints.KindOrderSize, MinOrderQuantity: 1, MaxOrderQuantity: 5}},
	}
	pl, ex, coord, _ := newTestPipeline(t, byRole)
	team, err := ex.Teams.Register("RETAIL1", constraints.RoleRetail)
	require.NoError(t, err)

	reqID, err := pl.SubmitOrder(team.ID, constraints.RoleRetail, mustOrder(ex, team.ID, orders.SideBuy, "150.00", 500))
	require.NoError(t, err)

	result, err := coord.Wait(context.Background(), reqID, 2*time.Second)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 422, result.HTTPStatus)
	assert.Equal(t, constraints.KindOrderSize.String(), result.ErrorCode)
}

func TestPipeline_SubmitCancelRemovesRestingOrderAndPublishesEvent(t *testing.T) {
	pl, ex, coord, hub := newTestPipeline(t, nil)
	team, err := ex.Teams.Register("MM1", constraints.RoleMarketMaker)
	require.NoError(t, err)

	sub, unsubscribe := hub.Subscribe(team.ID)
	defer unsubscribe()

	reqID, err := pl.SubmitOrder(team.ID, constraints.RoleMarketMaker, mustOrder(ex, team.ID, orders.SideSell, "150.00", 10))
	require.NoError(t, err)
	_, err = coord.Wait(context.Background(), reqID, 2*time.Second)
	require.NoError(t, err)
	<-sub // drain the new_order_ack

	cancelReqID, err := pl.SubmitCancel(team.ID, "AAPL", team.ID+"-150.00")
	require.NoError(t, err)

	result, err := coord.Wait(context.Background(), cancelReqID, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, result.Success)

	select {
	case ev := <-sub:
		assert.Equal(t, fanout.EventOrderCancelled, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("expected an order_cancelled event to be published")
	}
}
