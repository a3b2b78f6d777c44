// Package matching implements the two execution styles a phase can put an
// instrument's book into: continuous price-time priority matching, and
// batch (opening) auction matching. Both operate on the same
// internal/orderbook.OrderBook.
package matching

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tradingfloor/exchange-core/internal/orderbook"
	"github.com/tradingfloor/exchange-core/internal/orders"
)

// ContinuousEngine is the single-threaded continuous matching core. Submit
// must only ever be called from the pipeline's matcher goroutine (C8); it
// holds no internal lock of its own, relying on single-threaded access for
// determinism, in the same spirit as the ring-buffer consumer this design
// descends from.
type ContinuousEngine struct {
	books       map[string]*orderbook.OrderBook
	sequenceNum uint64
}

func NewContinuousEngine() *ContinuousEngine {
	return &ContinuousEngine{books: make(map[string]*orderbook.OrderBook)}
}

// AddInstrument registers a tradable instrument's book if not already present.
func (e *ContinuousEngine) AddInstrument(id string) {
	if _, exists := e.books[id]; !exists {
		e.books[id] = orderbook.NewOrderBook(id)
	}
}

func (e *ContinuousEngine) Book(id string) *orderbook.OrderBook {
	return e.books[id]
}

func (e *ContinuousEngine) nextSequence() uint64 {
	return atomic.AddUint64(&e.sequenceNum, 1)
}

// Submit matches an order against the resting book and, for a limit order
// with quantity left over, rests it. Order.ID, TeamID, InstrumentID and
// Status are expected to already be set by the caller; Submit assigns
// SequenceNum and settles the terminal Status/RejectReason.
func (e *ContinuousEngine) Submit(o *orders.Order) (*orders.ExecutionResult, error) {
	book := e.books[o.InstrumentID]
	if book == nil {
		return nil, fmt.Errorf("matching: unknown instrument %q", o.InstrumentID)
	}

	o.SequenceNum = e.nextSequence()
	o.Status = orders.OrderStatusNew

	trades := e.match(o, book)

	switch {
	case o.RemainingQty == 0:
		o.Status = orders.OrderStatusFilled
	case o.RemainingQty < o.Quantity:
		o.Status = orders.OrderStatusPartiallyFilled
	}

	result := &orders.ExecutionResult{Order: o, Trades: trades}

	if o.RemainingQty > 0 {
		switch o.Type {
		case orders.OrderTypeMarket:
			o.Status = orders.OrderStatusCancelled
			o.RejectReason = "no_liquidity"
		case orders.OrderTypeLimit:
			if err := book.AddOrder(o); err != nil {
				return nil, err
			}
			result.RestingQty = o.RemainingQty
		}
	}

	return result, nil
}

// match walks the opposite side of the book price-time priority order,
// producing one trade per crossing resting order.
func (e *ContinuousEngine) match(taker *orders.Order, book *orderbook.OrderBook) []orders.Trade {
	var trades []orders.Trade

	for taker.RemainingQty > 0 {
		var level *orderbook.PriceLevel
		var crosses bool
		if taker.Side == orders.SideBuy {
			level = book.BestAsk()
			crosses = level != nil && (taker.Type == orders.OrderTypeMarket || level.Price.LessThanOrEqual(taker.Price))
		} else {
			level = book.BestBid()
			crosses = level != nil && (taker.Type == orders.OrderTypeMarket || level.Price.GreaterThanOrEqual(taker.Price))
		}
		if !crosses {
			break
		}

		for node := level.Head(); node != nil && taker.RemainingQty > 0; {
			maker := node.Order
			next := node.Next()

			fillQty := maker.RemainingQty
			if taker.RemainingQty < fillQty {
				fillQty = taker.RemainingQty
			}

			aggressor := orders.AggressorBuy
			if taker.Side == orders.SideSell {
				aggressor = orders.AggressorSell
			}

			trade := orders.Trade{
				ID:            uuid.NewString(),
				InstrumentID:  taker.InstrumentID,
				Price:         level.Price,
				Quantity:      fillQty,
				Timestamp:     time.Now().UTC(),
				AggressorSide: aggressor,
				SequenceNum:   taker.SequenceNum,
			}
			if taker.Side == orders.SideBuy {
				trade.BuyOrderID, trade.SellOrderID = taker.ID, maker.ID
				trade.BuyerID, trade.SellerID = taker.TeamID, maker.TeamID
			} else {
				trade.BuyOrderID, trade.SellOrderID = maker.ID, taker.ID
				trade.BuyerID, trade.SellerID = maker.TeamID, taker.TeamID
			}
			trades = append(trades, trade)

			taker.RemainingQty -= fillQty
			book.ApplyFill(maker.ID, fillQty)
			if maker.RemainingQty <= 0 {
				maker.Status = orders.OrderStatusFilled
			} else {
				maker.Status = orders.OrderStatusPartiallyFilled
			}

			node = next
		}
	}

	return trades
}

// Cancel removes a resting order from its instrument's book.
func (e *ContinuousEngine) Cancel(instrumentID, orderID string) (*orders.Order, error) {
	book := e.books[instrumentID]
	if book == nil {
		return nil, fmt.Errorf("matching: unknown instrument %q", instrumentID)
	}
	o := book.CancelOrder(orderID)
	if o == nil {
		return nil, fmt.Errorf("matching: order %s not resting", orderID)
	}
	o.Status = orders.OrderStatusCancelled
	return o, nil
}

func (e *ContinuousEngine) GetOrder(instrumentID, orderID string) *orders.Order {
	book := e.books[instrumentID]
	if book == nil {
		return nil
	}
	return book.GetOrder(orderID)
}

// OrdersByTeam returns a team's resting orders in one instrument's book.
func (e *ContinuousEngine) OrdersByTeam(instrumentID, teamID string) []*orders.Order {
	book := e.books[instrumentID]
	if book == nil {
		return nil
	}
	return book.OrdersByTeam(teamID)
}

func (e *ContinuousEngine) Instruments() []string {
	ids := make([]string, 0, len(e.books))
	for id := range e.books {
		ids = append(ids, id)
	}
	return ids
}
