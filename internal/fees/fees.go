// Package fees computes maker/taker fees per trade and keeps a running
// ledger, adapting the teacher's settlement.ClearingHouse netting
// calculation into a lightweight NetExposure summary (no T+2 delay: this
// venue settles in memory, immediately).
package fees

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tradingfloor/exchange-core/internal/constraints"
	"github.com/tradingfloor/exchange-core/internal/orders"
)

// Schedule is a role's maker/taker rates. TakerFee is charged to the
// aggressor; MakerRebate is the rate paid to the resting side, which Book
// records as a negative Entry amount.
type Schedule struct {
	MakerRebate decimal.Decimal
	TakerFee    decimal.Decimal
}

// RoleSource resolves a team to the role its fee schedule is keyed by.
type RoleSource interface {
	RoleOf(teamID string) (constraints.Role, bool)
}

// Entry is one fee line item booked against a trade.
type Entry struct {
	TradeID  string
	TeamID   string
	Amount   decimal.Decimal // positive = fee owed, negative = rebate earned
	Liquidity string         // "maker" or "taker"
}

// Ledger computes and records fees for every trade, and keeps the teacher's
// net-exposure-by-instrument calculation, readable through NetExposure. The
// /positions endpoint returns positions only and does not include it.
type Ledger struct {
	mu        sync.Mutex
	schedules map[constraints.Role]Schedule
	roles     RoleSource
	entries   []Entry
	net       map[string]map[string]decimal.Decimal // team -> instrument -> net cash
}

func NewLedger(schedules map[constraints.Role]Schedule, roles RoleSource) *Ledger {
	return &Ledger{
		schedules: schedules,
		roles:     roles,
		net:       make(map[string]map[string]decimal.Decimal),
	}
}

// Book computes the maker and taker fee for a trade and records both as
// ledger entries, returning them so the caller can attach amounts to its
// execution report.
func (l *Ledger) Book(t orders.Trade) (makerFee, takerFee Entry) {
	notional := t.Price.Mul(decimal.NewFromInt(t.Quantity))

	if t.AggressorSide == orders.AggressorAuction {
		// Auction prints have no single aggressor; both legs are
		// classified as maker and earn the maker rebate.
		buyFee := Entry{TradeID: t.ID, TeamID: t.BuyerID, Liquidity: "maker", Amount: notional.Mul(l.rateFor(t.BuyerID).MakerRebate).Neg()}
		sellFee := Entry{TradeID: t.ID, TeamID: t.SellerID, Liquidity: "maker", Amount: notional.Mul(l.rateFor(t.SellerID).MakerRebate).Neg()}

		l.mu.Lock()
		l.entries = append(l.entries, buyFee, sellFee)
		l.adjustNetLocked(t.BuyerID, t.InstrumentID, notional.Neg())
		l.adjustNetLocked(t.SellerID, t.InstrumentID, notional)
		l.mu.Unlock()

		return buyFee, sellFee
	}

	var takerID, makerID string
	switch t.AggressorSide {
	case orders.AggressorBuy:
		takerID, makerID = t.BuyerID, t.SellerID
	default:
		takerID, makerID = t.SellerID, t.BuyerID
	}

	takerFee = Entry{TradeID: t.ID, TeamID: takerID, Liquidity: "taker", Amount: notional.Mul(l.rateFor(takerID).TakerFee)}
	makerFee = Entry{TradeID: t.ID, TeamID: makerID, Liquidity: "maker", Amount: notional.Mul(l.rateFor(makerID).MakerRebate).Neg()}

	l.mu.Lock()
	l.entries = append(l.entries, takerFee, makerFee)
	l.adjustNetLocked(t.BuyerID, t.InstrumentID, notional.Neg())
	l.adjustNetLocked(t.SellerID, t.InstrumentID, notional)
	l.mu.Unlock()

	return makerFee, takerFee
}

func (l *Ledger) rateFor(teamID string) Schedule {
	if l.roles == nil {
		return Schedule{}
	}
	role, ok := l.roles.RoleOf(teamID)
	if !ok {
		return Schedule{}
	}
	return l.schedules[role]
}

func (l *Ledger) adjustNetLocked(teamID, instrumentID string, delta decimal.Decimal) {
	if l.net[teamID] == nil {
		l.net[teamID] = make(map[string]decimal.Decimal)
	}
	l.net[teamID][instrumentID] = l.net[teamID][instrumentID].Add(delta)
}

// NetExposure returns a team's net cash exposure per instrument: negative
// means the team is a net buyer (cash paid out), positive a net seller.
// Adapted from the teacher's multi-trade netting reduction, here computed
// incrementally instead of batched at settlement time.
func (l *Ledger) NetExposure(teamID string) map[string]decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(l.net[teamID]))
	for instrumentID, v := range l.net[teamID] {
		out[instrumentID] = v
	}
	return out
}

// Entries returns every booked fee entry, for audit/reporting.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
