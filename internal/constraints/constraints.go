// Package constraints implements the configurable pre-trade rule engine
// (C6): a short-circuit-on-first-failure sequence of typed constraints,
// generalized from a fixed five-check sequence into an ordered, per-role
// configured list.
package constraints

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradingfloor/exchange-core/internal/orders"
	"github.com/tradingfloor/exchange-core/internal/phase"
)

// Role is a closed set of trading-account archetypes, each with its own
// configured constraint list and fee schedule.
type Role int

const (
	RoleMarketMaker Role = iota
	RoleHedgeFund
	RoleArbitrageDesk
	RoleRetail
)

func (r Role) String() string {
	switch r {
	case RoleMarketMaker:
		return "market_maker"
	case RoleHedgeFund:
		return "hedge_fund"
	case RoleArbitrageDesk:
		return "arbitrage_desk"
	case RoleRetail:
		return "retail"
	default:
		return "unknown"
	}
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "market_maker":
		return RoleMarketMaker, nil
	case "hedge_fund":
		return RoleHedgeFund, nil
	case "arbitrage_desk":
		return RoleArbitrageDesk, nil
	case "retail":
		return RoleRetail, nil
	default:
		return 0, fmt.Errorf("constraints: unknown role %q", s)
	}
}

// Kind identifies which rule a Constraint enforces.
type Kind int

const (
	KindPositionLimit Kind = iota
	KindPortfolioLimit
	KindOrderSize
	KindOrderRate
	KindAllowedOrderTypes
	KindAllowedInstruments
	KindTradingWindow
	KindPriceRange
)

func (k Kind) String() string {
	switch k {
	case KindPositionLimit:
		return "position_limit"
	case KindPortfolioLimit:
		return "portfolio_limit"
	case KindOrderSize:
		return "order_size"
	case KindOrderRate:
		return "order_rate"
	case KindAllowedOrderTypes:
		return "allowed_order_types"
	case KindAllowedInstruments:
		return "allowed_instruments"
	case KindTradingWindow:
		return "trading_window"
	case KindPriceRange:
		return "price_range"
	default:
		return "unknown"
	}
}

// Constraint is one configured rule. Only the fields relevant to Kind are
// populated; the rest are zero value.
type Constraint struct {
	Kind Kind

	// KindPositionLimit / KindPortfolioLimit
	MaxAbsolutePosition int64

	// KindPositionLimit: Symmetric enforces |position| <= max on both
	// sides. When false, longs are checked against [0, max] and shorts
	// against [-max, 0] as separate branches; both use the same
	// MaxAbsolutePosition, so the long and short caps are always equal.
	Symmetric bool

	// KindOrderSize
	MinOrderQuantity int64
	MaxOrderQuantity int64

	// KindOrderRate
	MaxOrdersPerSecond int

	// KindAllowedOrderTypes
	AllowedOrderTypes []orders.OrderType

	// KindAllowedInstruments (empty = all instruments allowed)
	AllowedInstruments []string

	// KindTradingWindow
	AllowedPhases []phase.State

	// KindPriceRange (limit orders only)
	MinPrice decimal.Decimal
	MaxPrice decimal.Decimal
}

// PositionSource answers "what does team hold right now" so the
// position/portfolio constraints can project the order's effect.
type PositionSource interface {
	Position(teamID, instrumentID string) int64
	PortfolioAbsolute(teamID string) int64
}

// RateSource answers "how many orders has team submitted in the current
// one-second wall-clock window."
type RateSource interface {
	OrdersThisWindow(teamID string, now time.Time) int
}

// Result is the outcome of validating one order.
type Result struct {
	Passed    bool
	Code      string // machine-readable failure reason, empty when Passed
	Message   string
	ChecksRun []string
}

// Validator holds the ordered constraint list per role plus the data
// sources each rule kind needs.
type Validator struct {
	byRole    map[Role][]Constraint
	positions PositionSource
	rates     RateSource
}

func NewValidator(byRole map[Role][]Constraint, positions PositionSource, rates RateSource) *Validator {
	return &Validator{byRole: byRole, positions: positions, rates: rates}
}

// Validate runs every constraint configured for the team's role against the
// order, in order, stopping at the first failure. currentPhase is the
// venue's current trading phase for the order's instrument, needed by
// KindTradingWindow.
func (v *Validator) Validate(o *orders.Order, role Role, currentPhase phase.State, now time.Time) Result {
	result := Result{Passed: true, ChecksRun: make([]string, 0, len(v.byRole[role]))}

	for _, c := range v.byRole[role] {
		result.ChecksRun = append(result.ChecksRun, c.Kind.String())
		if ok, msg := v.check(c, o, currentPhase, now); !ok {
			return Result{
				Passed:    false,
				Code:      c.Kind.String(),
				Message:   msg,
				ChecksRun: result.ChecksRun,
			}
		}
	}
	return result
}

func (v *Validator) check(c Constraint, o *orders.Order, currentPhase phase.State, now time.Time) (bool, string) {
	switch c.Kind {
	case KindOrderSize:
		if o.Quantity < c.MinOrderQuantity {
			return false, fmt.Sprintf("order size %d below min %d", o.Quantity, c.MinOrderQuantity)
		}
		if o.Quantity > c.MaxOrderQuantity {
			return false, fmt.Sprintf("order size %d exceeds max %d", o.Quantity, c.MaxOrderQuantity)
		}

	case KindAllowedOrderTypes:
		if !containsType(c.AllowedOrderTypes, o.Type) {
			return false, fmt.Sprintf("order type %s not permitted for this role", o.Type)
		}

	case KindAllowedInstruments:
		if len(c.AllowedInstruments) > 0 && !containsString(c.AllowedInstruments, o.InstrumentID) {
			return false, fmt.Sprintf("instrument %s not permitted for this role", o.InstrumentID)
		}

	case KindTradingWindow:
		if !containsPhase(c.AllowedPhases, currentPhase) {
			return false, fmt.Sprintf("phase %s not permitted for this role", currentPhase)
		}

	case KindPositionLimit:
		if v.positions == nil {
			return true, ""
		}
		current := v.positions.Position(o.TeamID, o.InstrumentID)
		projected := current + signedQty(o)
		if c.Symmetric {
			if abs64(projected) > c.MaxAbsolutePosition {
				return false, fmt.Sprintf("would exceed position limit (current: %d, projected: %d, max: %d)", current, projected, c.MaxAbsolutePosition)
			}
		} else if projected >= 0 {
			if projected > c.MaxAbsolutePosition {
				return false, fmt.Sprintf("would exceed long position limit (current: %d, projected: %d, max: %d)", current, projected, c.MaxAbsolutePosition)
			}
		} else if projected < -c.MaxAbsolutePosition {
			return false, fmt.Sprintf("would exceed short position limit (current: %d, projected: %d, max: %d)", current, projected, c.MaxAbsolutePosition)
		}

	case KindPortfolioLimit:
		if v.positions == nil {
			return true, ""
		}
		currentInstrument := v.positions.Position(o.TeamID, o.InstrumentID)
		projectedInstrument := currentInstrument + signedQty(o)
		projected := v.positions.PortfolioAbsolute(o.TeamID) - abs64(currentInstrument) + abs64(projectedInstrument)
		if projected > c.MaxAbsolutePosition {
			return false, fmt.Sprintf("would exceed portfolio limit (max: %d)", c.MaxAbsolutePosition)
		}

	case KindOrderRate:
		if v.rates == nil {
			return true, ""
		}
		if v.rates.OrdersThisWindow(o.TeamID, now) >= c.MaxOrdersPerSecond {
			return false, fmt.Sprintf("order rate exceeds %d per second", c.MaxOrdersPerSecond)
		}

	case KindPriceRange:
		if o.Type != orders.OrderTypeLimit {
			return true, ""
		}
		if o.Price.LessThan(c.MinPrice) || o.Price.GreaterThan(c.MaxPrice) {
			return false, fmt.Sprintf("price %s outside permitted range [%s, %s]", o.Price, c.MinPrice, c.MaxPrice)
		}
	}
	return true, ""
}

func signedQty(o *orders.Order) int64 {
	if o.Side == orders.SideBuy {
		return o.Quantity
	}
	return -o.Quantity
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func containsPhase(list []phase.State, p phase.State) bool {
	for _, x := range list {
		if x == p {
			return true
		}
	}
	return false
}

func containsType(list []orders.OrderType, t orders.OrderType) bool {
	for _, x := range list {
		if x == t {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
