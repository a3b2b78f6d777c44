package constraints

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tradingfloor/exchange-core/internal/orders"
	"github.com/tradingfloor/exchange-core/internal/phase"
)

type fakePositions struct {
	position  int64
	portfolio int64
}

func (f fakePositions) Position(teamID, instrumentID string) int64 { return f.position }
func (f fakePositions) PortfolioAbsolute(teamID string) int64      { return f.portfolio }

type fakeRates struct{ count int }

func (f fakeRates) OrdersThisWindow(teamID string, now time.Time) int { return f.count }

func order(side orders.Side, orderType orders.OrderType, price string, qty int64) *orders.Order {
	p := decimal.Zero
	if price != "" {
		p = decimal.RequireFromString(price)
	}
	return &orders.Order{
		InstrumentID: "AAPL",
		TeamID:       "team-1",
		Side:         side,
		Type:         orderType,
		Price:        p,
		Quantity:     qty,
		RemainingQty: qty,
	}
}

func TestValidator_PositionLimitRejectsOverLimitBuy(t *testing.T) {
	v := NewValidator(map[Role][]Constraint{
		RoleRetail: {{Kind: KindPositionLimit, MaxAbsolutePosition: 100, Symmetric: true}},
	}, fakePositions{position: 80}, nil)

	result := v.Validate(order(orders.SideBuy, orders.OrderTypeLimit, "10.00", 50), RoleRetail, phase.Continuous, time.Now())
	assert.False(t, result.Passed)
	assert.Equal(t, "position_limit", result.Code)
}

func TestValidator_PositionLimitAllowsReducingTrade(t *testing.T) {
	v := NewValidator(map[Role][]Constraint{
		RoleRetail: {{Kind: KindPositionLimit, MaxAbsolutePosition: 100, Symmetric: true}},
	}, fakePositions{position: 80}, nil)

	result := v.Validate(order(orders.SideSell, orders.OrderTypeLimit, "10.00", 50), RoleRetail, phase.Continuous, time.Now())
	assert.True(t, result.Passed, "selling from a long position reduces exposure and should pass")
}

func TestValidator_PositionLimitAsymmetricCapsLongAtMaxIndependentlyOfShort(t *testing.T) {
	v := NewValidator(map[Role][]Constraint{
		RoleRetail: {{Kind: KindPositionLimit, MaxAbsolutePosition: 100}},
	}, fakePositions{position: 90}, nil)

	result := v.Validate(order(orders.SideBuy, orders.OrderTypeLimit, "10.00", 20), RoleRetail, phase.Continuous, time.Now())
	assert.False(t, result.Passed, "a long position projected to 110 must exceed the 100 long cap")
	assert.Equal(t, "position_limit", result.Code)
}

func TestValidator_PositionLimitAsymmetricCapsShortAtMaxIndependentlyOfLong(t *testing.T) {
	v := NewValidator(map[Role][]Constraint{
		RoleRetail: {{Kind: KindPositionLimit, MaxAbsolutePosition: 100}},
	}, fakePositions{position: -90}, nil)

	result := v.Validate(order(orders.SideSell, orders.OrderTypeLimit, "10.00", 20), RoleRetail, phase.Continuous, time.Now())
	assert.False(t, result.Passed, "a short position projected to -110 must exceed the -100 short cap")
	assert.Equal(t, "position_limit", result.Code)
}

func TestValidator_PositionLimitAsymmetricAllowsCrossingFlatWithinEitherCap(t *testing.T) {
	v := NewValidator(map[Role][]Constraint{
		RoleRetail: {{Kind: KindPositionLimit, MaxAbsolutePosition: 100}},
	}, fakePositions{position: -90}, nil)

	result := v.Validate(order(orders.SideBuy, orders.OrderTypeLimit, "10.00", 50), RoleRetail, phase.Continuous, time.Now())
	assert.True(t, result.Passed, "buying back from -90 toward -40 stays within the short cap")
}

func TestValidator_PortfolioLimitRejectsOverLimit(t *testing.T) {
	v := NewValidator(map[Role][]Constraint{
		RoleRetail: {{Kind: KindPortfolioLimit, MaxAbsolutePosition: 100}},
	}, fakePositions{portfolio: 90}, nil)

	result := v.Validate(order(orders.SideBuy, orders.OrderTypeLimit, "10.00", 20), RoleRetail, phase.Continuous, time.Now())
	assert.False(t, result.Passed)
	assert.Equal(t, "portfolio_limit", result.Code)
}

func TestValidator_PortfolioLimitNetsExistingExposureInTradedInstrument(t *testing.T) {
	// The team's only position is 10 in AAPL, so PortfolioAbsolute is 10.
	// Selling 5 nets the traded instrument down to 5, not up to 15.
	v := NewValidator(map[Role][]Constraint{
		RoleRetail: {{Kind: KindPortfolioLimit, MaxAbsolutePosition: 8}},
	}, fakePositions{position: 10, portfolio: 10}, nil)

	result := v.Validate(order(orders.SideSell, orders.OrderTypeLimit, "10.00", 5), RoleRetail, phase.Continuous, time.Now())
	assert.True(t, result.Passed, "reducing the traded instrument's exposure must net against the portfolio total, not add to it")
}

func TestValidator_OrderRateRejectsAtCeiling(t *testing.T) {
	v := NewValidator(map[Role][]Constraint{
		RoleRetail: {{Kind: KindOrderRate, MaxOrdersPerSecond: 5}},
	}, nil, fakeRates{count: 5})

	result := v.Validate(order(orders.SideBuy, orders.OrderTypeLimit, "10.00", 1), RoleRetail, phase.Continuous, time.Now())
	assert.False(t, result.Passed)
	assert.Equal(t, "order_rate", result.Code)
}

func TestValidator_OrderRateAllowsBelowCeiling(t *testing.T) {
	v := NewValidator(map[Role][]Constraint{
		RoleRetail: {{Kind: KindOrderRate, MaxOrdersPerSecond: 5}},
	}, nil, fakeRates{count: 4})

	result := v.Validate(order(orders.SideBuy, orders.OrderTypeLimit, "10.00", 1), RoleRetail, phase.Continuous, time.Now())
	assert.True(t, result.Passed)
}

func TestValidator_PriceRangeOnlyAppliesToLimitOrders(t *testing.T) {
	v := NewValidator(map[Role][]Constraint{
		RoleRetail: {{Kind: KindPriceRange, MinPrice: decimal.RequireFromString("10"), MaxPrice: decimal.RequireFromString("20")}},
	}, nil, nil)

	outOfRange := v.Validate(order(orders.SideBuy, orders.OrderTypeLimit, "25.00", 1), RoleRetail, phase.Continuous, time.Now())
	assert.False(t, outOfRange.Passed)
	assert.Equal(t, "price_range", outOfRange.Code)

	marketOrder := v.Validate(order(orders.SideBuy, orders.OrderTypeMarket, "", 1), RoleRetail, phase.Continuous, time.Now())
	assert.True(t, marketOrder.Passed, "price range has nothing to check on a market order")
}

func TestValidator_AllowedOrderTypesAndInstruments(t *testing.T) {
	v := NewValidator(map[Role][]Constraint{
		RoleRetail: {
			{Kind: KindAllowedOrderTypes, AllowedOrderTypes: []orders.OrderType{orders.OrderTypeLimit}},
			{Kind: KindAllowedInstruments, AllowedInstruments: []string{"AAPL"}},
		},
	}, nil, nil)

	rejectedType := v.Validate(order(orders.SideBuy, orders.OrderTypeMarket, "", 1), RoleRetail, phase.Continuous, time.Now())
	assert.False(t, rejectedType.Passed)
	assert.Equal(t, "allowed_order_types", rejectedType.Code)

	o := order(orders.SideBuy, orders.OrderTypeLimit, "10.00", 1)
	o.InstrumentID = "TSLA"
	rejectedInstrument := v.Validate(o, RoleRetail, phase.Continuous, time.Now())
	assert.False(t, rejectedInstrument.Passed)
	assert.Equal(t, "allowed_instruments", rejectedInstrument.Code)
}

func TestValidator_ShortCircuitsOnFirstFailure(t *testing.T) {
	v := NewValidator(map[Role][]Constraint{
		RoleRetail: {
			{Kind: KindOrderSize, MinOrderQuantity: 1000, MaxOrderQuantity: 2000},
			{Kind: KindAllowedInstruments, AllowedInstruments: []string{"TSLA"}},
		},
	}, nil, nil)

	result := v.Validate(order(orders.SideBuy, orders.OrderTypeLimit, "10.00", 1), RoleRetail, phase.Continuous, time.Now())
	assert.False(t, result.Passed)
	assert.Equal(t, "order_size", result.Code, "the first configured check should fail before the second ever runs")
	assert.Equal(t, []string{"order_size"}, result.ChecksRun)
}

func TestValidator_EmptyRoleListPasses(t *testing.T) {
	v := NewValidator(map[Role][]Constraint{}, nil, nil)
	result := v.Validate(order(orders.SideBuy, orders.OrderTypeLimit, "10.00", 1), RoleRetail, phase.Continuous, time.Now())
	assert.True(t, result.Passed)
	assert.Empty(t, result.ChecksRun)
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"market_maker":   RoleMarketMaker,
		"hedge_fund":      RoleHedgeFund,
		"arbitrage_desk":  RoleArbitrageDesk,
		"retail":          RoleRetail,
	}
	for s, want := range cases {
		got, err := ParseRole(s)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseRole("bogus")
	assert.Error(t, err)
}
