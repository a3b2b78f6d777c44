// Package orders defines the core order, fill and trade types shared by the
// order book, matching engines, and pipeline stages.
//
// Key design decisions:
//
//  1. Decimal prices: Price is a decimal.Decimal rather than a fixed-point
//     int64, so strike-style option prices (e.g. "12.375") round-trip exactly
//     without a scale convention baked into the type.
//
//  2. Sequence numbers: every order that reaches the matching engine is
//     assigned a monotonically increasing SequenceNum, which is copied onto
//     the trades it takes part in. FIFO within a price level follows the
//     order in which orders were appended to the level's queue; neither
//     SequenceNum nor the UUID OrderID is consulted for that ordering.
//
//  3. Quantities stay int64 (whole contracts/shares only).
package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the side of an order (buy or sell).
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

func ParseSide(s string) (Side, error) {
	switch s {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	default:
		return 0, fmt.Errorf("orders: unknown side %q", s)
	}
}

// Opposite returns the opposite side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType represents the type of order and its execution semantics.
//
// Only limit and market survive from the teacher's four-way enum: IOC and
// FOK are not part of the order surface this venue exposes.
type OrderType int

const (
	// OrderTypeLimit rests in the book until filled or cancelled. Only
	// executes at the specified price or better.
	OrderTypeLimit OrderType = iota

	// OrderTypeMarket executes immediately against the best available
	// price(s) with no price protection.
	OrderTypeMarket
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "limit"
	case OrderTypeMarket:
		return "market"
	default:
		return "unknown"
	}
}

func ParseOrderType(s string) (OrderType, error) {
	switch s {
	case "limit":
		return OrderTypeLimit, nil
	case "market":
		return OrderTypeMarket, nil
	default:
		return 0, fmt.Errorf("orders: unknown order_type %q", s)
	}
}

// OrderStatus represents the current state of an order.
type OrderStatus int

const (
	// OrderStatusPendingNew - accepted into the pipeline, not yet validated.
	OrderStatusPendingNew OrderStatus = iota

	// OrderStatusNew - validated and live (resting, or about to be matched).
	OrderStatusNew

	// OrderStatusPartiallyFilled - some but not all quantity has executed.
	OrderStatusPartiallyFilled

	// OrderStatusFilled - fully executed.
	OrderStatusFilled

	// OrderStatusCancelled - removed from the book before being filled, by
	// request or because a market order found no liquidity.
	OrderStatusCancelled

	// OrderStatusRejected - failed validation and never entered the book.
	OrderStatusRejected
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPendingNew:
		return "pending_new"
	case OrderStatusNew:
		return "new"
	case OrderStatusPartiallyFilled:
		return "partially_filled"
	case OrderStatusFilled:
		return "filled"
	case OrderStatusCancelled:
		return "cancelled"
	case OrderStatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// Order represents a single order routed through the venue.
type Order struct {
	// ID is the server-assigned unique identifier (UUIDv4 string).
	ID string

	// ClientOrderID is an optional caller-supplied identifier, echoed back
	// verbatim but otherwise not interpreted by the venue.
	ClientOrderID string

	// SequenceNum is assigned by the continuous matching engine on entry
	// and copied onto the trades where this order is the taker. Zero until
	// the order reaches that engine.
	SequenceNum uint64

	InstrumentID string
	TeamID       string

	Side Side
	Type OrderType

	// Price is meaningful only for OrderTypeLimit; zero value for market
	// orders.
	Price decimal.Decimal

	Quantity     int64
	RemainingQty int64

	SubmissionTime time.Time
	Status         OrderStatus

	// RejectReason is populated when Status is Rejected or (for a market
	// order that found no liquidity) Cancelled.
	RejectReason string
}

// FilledQty returns the quantity executed so far.
func (o *Order) FilledQty() int64 {
	return o.Quantity - o.RemainingQty
}

// IsActive returns true if the order can still participate in matching.
func (o *Order) IsActive() bool {
	return o.Status == OrderStatusNew || o.Status == OrderStatusPartiallyFilled
}

func (o *Order) String() string {
	return fmt.Sprintf("Order{%s %s %s %d@%s rem=%d status=%s}",
		o.ID, o.Side, o.InstrumentID, o.Quantity, o.Price, o.RemainingQty, o.Status)
}

// AggressorSide records which side initiated a trade, for reporting.
type AggressorSide int

const (
	AggressorBuy AggressorSide = iota
	AggressorSell
	AggressorAuction
)

func (a AggressorSide) String() string {
	switch a {
	case AggressorBuy:
		return "buy"
	case AggressorSell:
		return "sell"
	case AggressorAuction:
		return "auction"
	default:
		return "unknown"
	}
}

// Trade represents a single execution between two orders.
type Trade struct {
	ID           string
	InstrumentID string

	BuyOrderID  string
	SellOrderID string
	BuyerID     string
	SellerID    string

	Price    decimal.Decimal
	Quantity int64

	Timestamp     time.Time
	AggressorSide AggressorSide

	// SequenceNum ties the trade back to the matching pass that produced
	// it, for deterministic ordering in reports.
	SequenceNum uint64
}

func (t *Trade) String() string {
	return fmt.Sprintf("Trade{%s %s %d@%s buy=%s sell=%s}",
		t.ID, t.InstrumentID, t.Quantity, t.Price, t.BuyOrderID, t.SellOrderID)
}

// ExecutionResult is the outcome of routing one order through a matching
// engine: the order's final state plus whatever trades it produced.
type ExecutionResult struct {
	Order      *Order
	Trades     []Trade
	RestingQty int64
}
