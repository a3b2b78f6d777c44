// Package position tracks each team's signed position per instrument,
// adapted from the teacher's risk.Checker positions map into its own
// service so the constraint validator (C6) and the fee/reporting layer (C7)
// share one source of truth.
package position

import (
	"sync"

	"github.com/tradingfloor/exchange-core/internal/orders"
)

// Service is a concurrency-safe signed-position map: team -> instrument ->
// net quantity (positive = net long, negative = net short).
type Service struct {
	mu        sync.RWMutex
	positions map[string]map[string]int64
}

func NewService() *Service {
	return &Service{positions: make(map[string]map[string]int64)}
}

// ApplyTrade updates both sides of a trade's position. Safe to call once per
// trade, exactly once.
func (s *Service) ApplyTrade(t orders.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adjustLocked(t.BuyerID, t.InstrumentID, t.Quantity)
	s.adjustLocked(t.SellerID, t.InstrumentID, -t.Quantity)
}

func (s *Service) adjustLocked(teamID, instrumentID string, delta int64) {
	if s.positions[teamID] == nil {
		s.positions[teamID] = make(map[string]int64)
	}
	s.positions[teamID][instrumentID] += delta
}

// Position returns a team's current net position in one instrument.
func (s *Service) Position(teamID, instrumentID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if book, ok := s.positions[teamID]; ok {
		return book[instrumentID]
	}
	return 0
}

// PortfolioAbsolute returns the sum of absolute positions across every
// instrument a team holds, the figure the portfolio_limit constraint caps.
func (s *Service) PortfolioAbsolute(teamID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, qty := range s.positions[teamID] {
		if qty < 0 {
			total -= qty
		} else {
			total += qty
		}
	}
	return total
}

// Snapshot returns a copy of a team's positions across all instruments, for
// the /positions query endpoint.
func (s *Service) Snapshot(teamID string) map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.positions[teamID]))
	for instrumentID, qty := range s.positions[teamID] {
		out[instrumentID] = qty
	}
	return out
}
