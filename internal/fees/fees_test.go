package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradingfloor/exchange-core/internal/constraints"
	"github.com/tradingfloor/exchange-core/internal/orders"
)

type fakeRoles struct {
	byTeam map[string]constraints.Role
}

func (f fakeRoles) RoleOf(teamID string) (constraints.Role, bool) {
	r, ok := f.byTeam[teamID]
	return r, ok
}

func newTestLedger() *Ledger {
	schedules := map[constraints.Role]Schedule{
		constraints.RoleMarketMaker: {MakerRebate: decimal.NewFromFloat(0.0002), TakerFee: decimal.NewFromFloat(0.0005)},
		constraints.RoleRetail:      {MakerRebate: decimal.Zero, TakerFee: decimal.NewFromFloat(0.001)},
	}
	roles := fakeRoles{byTeam: map[string]constraints.Role{
		"mm":     constraints.RoleMarketMaker,
		"retail": constraints.RoleRetail,
	}}
	return NewLedger(schedules, roles)
}

func TestLedger_BookChargesTakerAndRebatesMaker(t *testing.T) {
	l := newTestLedger()
	trade := orders.Trade{
		ID: "t1", BuyerID: "retail", SellerID: "mm", InstrumentID: "AAPL",
		Price: decimal.RequireFromString("100.00"), Quantity: 10, AggressorSide: orders.AggressorBuy,
	}

	makerFee, takerFee := l.Book(trade)
	require.Equal(t, "maker", makerFee.Liquidity)
	require.Equal(t, "taker", takerFee.Liquidity)
	assert.Equal(t, "mm", makerFee.TeamID)
	assert.Equal(t, "retail", takerFee.TeamID)
	assert.True(t, makerFee.Amount.IsNegative(), "the maker rebate must be a negative fee amount")
	assert.True(t, takerFee.Amount.IsPositive(), "the taker fee must be a positive fee amount")
}

func TestLedger_AuctionTradeClassifiesBothLegsAsMaker(t *testing.T) {
	l := newTestLedger()
	trade := orders.Trade{
		ID: "t1", BuyerID: "retail", SellerID: "mm", InstrumentID: "AAPL",
		Price: decimal.RequireFromString("100.00"), Quantity: 10, AggressorSide: orders.AggressorAuction,
	}

	buyFee, sellFee := l.Book(trade)
	assert.Equal(t, "maker", buyFee.Liquidity)
	assert.Equal(t, "maker", sellFee.Liquidity)
}

func TestLedger_EntriesAccumulateAcrossTrades(t *testing.T) {
	l := newTestLedger()
	l.Book(orders.Trade{ID: "t1", BuyerID: "retail", SellerID: "mm", InstrumentID: "AAPL", Price: decimal.RequireFromString("100.00"), Quantity: 10, AggressorSide: orders.AggressorBuy})
	l.Book(orders.Trade{ID: "t2", BuyerID: "mm", SellerID: "retail", InstrumentID: "AAPL", Price: decimal.RequireFromString("101.00"), Quantity: 5, AggressorSide: orders.AggressorSell})

	entries := l.Entries()
	assert.Len(t, entries, 4)
}

func TestLedger_NetExposureTracksCashPerInstrument(t *testing.T) {
	l := newTestLedger()
	l.Book(orders.Trade{ID: "t1", BuyerID: "retail", SellerID: "mm", InstrumentID: "AAPL", Price: decimal.RequireFromString("100.00"), Quantity: 10, AggressorSide: orders.AggressorBuy})

	buyerExposure := l.NetExposure("retail")
	sellerExposure := l.NetExposure("mm")
	assert.True(t, buyerExposure["AAPL"].IsNegative(), "a net buyer paid cash out")
	assert.True(t, sellerExposure["AAPL"].IsPositive(), "a net seller received cash")
	assert.True(t, buyerExposure["AAPL"].Add(sellerExposure["AAPL"]).IsZero())
}

func TestLedger_UnknownTeamGetsZeroSchedule(t *testing.T) {
	l := newTestLedger()
	trade := orders.Trade{
		ID: "t1", BuyerID: "ghost", SellerID: "mm", InstrumentID: "AAPL",
		Price: decimal.RequireFromString("100.00"), Quantity: 10, AggressorSide: orders.AggressorBuy,
	}

	_, takerFee := l.Book(trade)
	assert.True(t, takerFee.Amount.IsZero(), "a team with no known role must be charged nothing")
}
