// Package venue is the exchange façade (C5): it owns the instrument
// registry, the per-instrument order books via the matching engines, the
// phase manager, and wires the constraint validator, position service and
// fee ledger together behind one per-instrument lock.
package venue

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradingfloor/exchange-core/internal/constraints"
	"github.com/tradingfloor/exchange-core/internal/fees"
	"github.com/tradingfloor/exchange-core/internal/instrument"
	"github.com/tradingfloor/exchange-core/internal/matching"
	"github.com/tradingfloor/exchange-core/internal/orders"
	"github.com/tradingfloor/exchange-core/internal/phase"
	"github.com/tradingfloor/exchange-core/internal/position"
)

// Config carries the venue-wide settings that are not per-request.
type Config struct {
	AllowSelfTrade bool
	Schedule       []phase.Interval
}

// Exchange is the domain-object holder the teacher's cmd/server.Server
// struct played, with the HTTP transport split out into cmd/exchanged.
type Exchange struct {
	cfg Config

	instruments *instrument.Registry
	continuous  *matching.ContinuousEngine
	batch       *matching.BatchEngine
	phases      *phase.Handler

	Teams       *TeamRegistry
	Validator   *constraints.Validator
	Positions   *position.Service
	Fees        *fees.Ledger
	Rates       *RateTracker

	logger *zap.Logger

	mu            sync.RWMutex
	instrumentMus map[string]*sync.RWMutex
	refPrices     map[string]decimal.Decimal
	refPricesMu   sync.RWMutex
}

func New(cfg Config, strategy matching.PricingStrategy, validator *constraints.Validator, feeSchedules map[constraints.Role]fees.Schedule, positions *position.Service, rates *RateTracker, logger *zap.Logger) *Exchange {
	if logger == nil {
		logger = zap.NewNop()
	}
	if positions == nil {
		positions = position.NewService()
	}
	if rates == nil {
		rates = NewRateTracker()
	}
	ex := &Exchange{
		cfg:           cfg,
		instruments:   instrument.NewRegistry(),
		continuous:    matching.NewContinuousEngine(),
		batch:         matching.NewBatchEngine(strategy, nil),
		Teams:         NewTeamRegistry(),
		Validator:     validator,
		Positions:     positions,
		Rates:         rates,
		logger:        logger,
		instrumentMus: make(map[string]*sync.RWMutex),
		refPrices:     make(map[string]decimal.Decimal),
	}
	ex.Fees = fees.NewLedger(feeSchedules, ex.Teams)
	ex.phases = phase.NewHandler(cfg.Schedule, ex, logger)
	return ex
}

// AddInstrument registers a tradable instrument and its book.
func (ex *Exchange) AddInstrument(inst instrument.Instrument) error {
	if err := ex.instruments.Add(inst); err != nil {
		return err
	}
	ex.continuous.AddInstrument(inst.ID)
	ex.mu.Lock()
	ex.instrumentMus[inst.ID] = &sync.RWMutex{}
	ex.mu.Unlock()
	return nil
}

func (ex *Exchange) lockFor(instrumentID string) *sync.RWMutex {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.instrumentMus[instrumentID]
}

// PhaseOf returns the current capability-resolving phase for an instrument.
func (ex *Exchange) PhaseOf(instrumentID string, now time.Time) phase.State {
	return ex.phases.Current(instrumentID, now)
}

// CheckPhaseTransitions resolves the current time against the schedule for
// every registered instrument and fires any phase-transition side effects.
// Called periodically by the pipeline's matcher stage.
func (ex *Exchange) CheckPhaseTransitions(now time.Time) {
	for _, inst := range ex.instruments.List() {
		if _, _, err := ex.phases.Check(inst.ID, now); err != nil {
			ex.logger.Error("phase transition action failed",
				zap.String("instrument_id", inst.ID), zap.Error(err))
		}
	}
}

// Submit routes an order to the matching engine appropriate for the
// instrument's current phase. It does not perform constraint validation;
// that runs earlier in the pipeline (C8's validator stage) so Submit can
// stay a pure domain operation.
func (ex *Exchange) Submit(o *orders.Order, now time.Time) (*orders.ExecutionResult, error) {
	lock := ex.lockFor(o.InstrumentID)
	if lock == nil {
		return nil, fmt.Errorf("venue: unknown instrument %q", o.InstrumentID)
	}
	lock.Lock()
	defer lock.Unlock()

	capv := phase.CapabilitiesFor(ex.phases.Current(o.InstrumentID, now))
	if !capv.OrderEntryAllowed {
		o.Status = orders.OrderStatusRejected
		o.RejectReason = "market_closed"
		return &orders.ExecutionResult{Order: o}, nil
	}

	// Self-trade prevention is out of scope; AllowSelfTrade exists only
	// as an operator toggle (default true, self-trading allowed) and is
	// not enforced here.

	switch capv.ExecutionStyle {
	case phase.ExecutionNone, phase.ExecutionBatch:
		// Pre-open orders accumulate in the auction queue alongside
		// opening-auction orders; they wait for the same ExecuteOpeningAuction
		// clearing rather than matching immediately.
		ex.batch.Enqueue(o)
		return &orders.ExecutionResult{Order: o, RestingQty: o.RemainingQty}, nil
	case phase.ExecutionContinuous:
		result, err := ex.continuous.Submit(o)
		if err != nil {
			return nil, err
		}
		ex.applyTrades(result.Trades, now)
		return result, nil
	default:
		o.Status = orders.OrderStatusRejected
		o.RejectReason = "market_closed"
		return &orders.ExecutionResult{Order: o}, nil
	}
}

// Cancel removes a resting or queued order.
func (ex *Exchange) Cancel(instrumentID, orderID string, now time.Time) (*orders.Order, error) {
	lock := ex.lockFor(instrumentID)
	if lock == nil {
		return nil, fmt.Errorf("venue: unknown instrument %q", instrumentID)
	}
	lock.Lock()
	defer lock.Unlock()

	capv := phase.CapabilitiesFor(ex.phases.Current(instrumentID, now))
	if !capv.CancellationAllowed {
		return nil, fmt.Errorf("venue: cancellation not allowed in current phase")
	}

	if capv.ExecutionStyle == phase.ExecutionNone || capv.ExecutionStyle == phase.ExecutionBatch {
		return ex.batch.Cancel(instrumentID, orderID)
	}
	return ex.continuous.Cancel(instrumentID, orderID)
}

// ExecuteOpeningAuction implements phase.TransitionTarget: it clears every
// queued order for an instrument at a single uniform price, applies the
// resulting trades, and hands unfilled limit orders to the continuous book.
func (ex *Exchange) ExecuteOpeningAuction(instrumentID string) error {
	lock := ex.lockFor(instrumentID)
	if lock == nil {
		return fmt.Errorf("venue: unknown instrument %q", instrumentID)
	}
	lock.Lock()
	defer lock.Unlock()

	trades, leftover, err := ex.batch.ExecuteAuction(instrumentID)
	if err != nil {
		return err
	}
	ex.applyTrades(trades, time.Now().UTC())

	for _, o := range leftover {
		if o.Type == orders.OrderTypeLimit && o.RemainingQty > 0 {
			if err := ex.continuous.Book(instrumentID).AddOrder(o); err != nil {
				ex.logger.Error("failed to rest leftover auction order",
					zap.String("order_id", o.ID), zap.Error(err))
			}
		} else {
			o.Status = orders.OrderStatusCancelled
			o.RejectReason = "no_liquidity"
		}
	}
	return nil
}

// CancelAllOrders implements phase.TransitionTarget: draining a closing
// book is the one place the venue cancels orders on the participants'
// behalf rather than by request.
func (ex *Exchange) CancelAllOrders(instrumentID string) error {
	lock := ex.lockFor(instrumentID)
	if lock == nil {
		return fmt.Errorf("venue: unknown instrument %q", instrumentID)
	}
	lock.Lock()
	defer lock.Unlock()

	book := ex.continuous.Book(instrumentID)
	if book == nil {
		return fmt.Errorf("venue: unknown instrument %q", instrumentID)
	}
	for _, o := range book.Drain() {
		o.Status = orders.OrderStatusCancelled
		o.RejectReason = "market_closed"
	}
	return nil
}

func (ex *Exchange) applyTrades(trades []orders.Trade, now time.Time) {
	for _, t := range trades {
		ex.Positions.ApplyTrade(t)
		ex.Fees.Book(t)
		ex.refPricesMu.Lock()
		ex.refPrices[t.InstrumentID] = t.Price
		ex.refPricesMu.Unlock()
	}
}

// ReferencePrice returns the last traded price for an instrument, used for
// display purposes (e.g. a last-price field in the book snapshot).
func (ex *Exchange) ReferencePrice(instrumentID string) (decimal.Decimal, bool) {
	ex.refPricesMu.RLock()
	defer ex.refPricesMu.RUnlock()
	p, ok := ex.refPrices[instrumentID]
	return p, ok
}

// OpenOrders returns every resting order across all instruments belonging
// to a team, for the open-orders query endpoint.
func (ex *Exchange) OpenOrders(teamID string) []*orders.Order {
	out := make([]*orders.Order, 0)
	for _, inst := range ex.instruments.List() {
		lock := ex.lockFor(inst.ID)
		if lock == nil {
			continue
		}
		lock.RLock()
		out = append(out, ex.continuous.OrdersByTeam(inst.ID, teamID)...)
		lock.RUnlock()
	}
	return out
}

// OrderOwner returns the team that owns a resting order, so the HTTP layer
// can reject a cancel request before it ever reaches the pipeline.
func (ex *Exchange) OrderOwner(instrumentID, orderID string) (string, bool) {
	lock := ex.lockFor(instrumentID)
	if lock == nil {
		return "", false
	}
	lock.RLock()
	defer lock.RUnlock()
	o := ex.continuous.GetOrder(instrumentID, orderID)
	if o == nil {
		return "", false
	}
	return o.TeamID, true
}

func (ex *Exchange) Instruments() []instrument.Instrument {
	return ex.instruments.List()
}

func (ex *Exchange) Instrument(id string) (*instrument.Instrument, bool) {
	return ex.instruments.Get(id)
}

func (ex *Exchange) ContinuousBook(instrumentID string) *BookView {
	book := ex.continuous.Book(instrumentID)
	if book == nil {
		return nil
	}
	return &BookView{book: book}
}
