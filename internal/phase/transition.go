package phase

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// TransitionTarget is implemented by the venue (C5) so the transition
// handler can trigger the side effects each phase change requires without
// depending on the venue package directly.
type TransitionTarget interface {
	ExecuteOpeningAuction(instrumentID string) error
	CancelAllOrders(instrumentID string) error
}

// transitionAction names what a (from, to) pair requires; the zero value
// (noAction) covers every pair with no side effect.
type transitionAction int

const (
	noAction transitionAction = iota
	actionRunAuction
	actionCancelAll
)

// dispatch holds the one-time action each phase transition triggers. Pairs
// absent from the map perform no action (e.g. pre_open -> pre_open, a
// re-check that finds nothing changed).
var dispatch = map[[2]State]transitionAction{
	{PreOpen, OpeningAuction}: actionRunAuction,
	{Continuous, Closed}:      actionCancelAll,
	{OpeningAuction, Closed}:  actionCancelAll,
	{PreOpen, Closed}:         actionCancelAll,
}

// Handler tracks the last observed phase per instrument and fires the
// dispatch-table action exactly once per transition. It is idempotent:
// calling Check twice in a row with the same resolved phase is a no-op the
// second time.
type Handler struct {
	mu       sync.Mutex
	schedule []Interval
	last     map[string]State
	target   TransitionTarget
	logger   *zap.Logger
}

func NewHandler(schedule []Interval, target TransitionTarget, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		schedule: schedule,
		last:     make(map[string]State),
		target:   target,
		logger:   logger,
	}
}

// Current returns the phase currently recorded for an instrument, resolving
// and recording it for the first time if this is the first call.
func (h *Handler) Current(instrumentID string, now time.Time) State {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.last[instrumentID]; ok {
		return s
	}
	resolved := Resolve(now, h.schedule)
	h.last[instrumentID] = resolved
	return resolved
}

// Check resolves the phase for now and, if it differs from the last
// recorded phase for instrumentID, records the new phase and runs the
// dispatch-table action for that (from, to) pair.
func (h *Handler) Check(instrumentID string, now time.Time) (from, to State, err error) {
	resolved := Resolve(now, h.schedule)

	h.mu.Lock()
	prev, known := h.last[instrumentID]
	if !known {
		h.last[instrumentID] = resolved
		h.mu.Unlock()
		return resolved, resolved, nil
	}
	if prev == resolved {
		h.mu.Unlock()
		return prev, resolved, nil
	}
	h.last[instrumentID] = resolved
	h.mu.Unlock()

	h.logger.Info("phase transition",
		zap.String("instrument_id", instrumentID),
		zap.String("from", prev.String()),
		zap.String("to", resolved.String()))

	switch dispatch[[2]State{prev, resolved}] {
	case actionRunAuction:
		err = h.target.ExecuteOpeningAuction(instrumentID)
	case actionCancelAll:
		err = h.target.CancelAllOrders(instrumentID)
	}
	return prev, resolved, err
}
