package matching

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradingfloor/exchange-core/internal/orders"
)

// BatchEngine accumulates orders submitted during the opening-auction phase
// and clears them all at once at a single uniform price, using a pluggable
// PricingStrategy so the clearing rule can change without touching the
// queueing logic.
type BatchEngine struct {
	strategy PricingStrategy
	pending  map[string][]*orders.Order // instrumentID -> queued orders
	rng      *rand.Rand
}

// NewBatchEngine builds an auction engine. rng may be nil, in which case a
// process-seeded source is used; tests should inject a deterministic one.
func NewBatchEngine(strategy PricingStrategy, rng *rand.Rand) *BatchEngine {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xA5A5A5A5))
	}
	return &BatchEngine{
		strategy: strategy,
		pending:  make(map[string][]*orders.Order),
		rng:      rng,
	}
}

// Enqueue buffers an order for the next auction on its instrument. The order
// is accepted (status New) but produces no trade until ExecuteAuction runs.
func (e *BatchEngine) Enqueue(o *orders.Order) {
	o.Status = orders.OrderStatusNew
	e.pending[o.InstrumentID] = append(e.pending[o.InstrumentID], o)
}

// Cancel removes a queued order before the auction runs.
func (e *BatchEngine) Cancel(instrumentID, orderID string) (*orders.Order, error) {
	queue := e.pending[instrumentID]
	for i, o := range queue {
		if o.ID == orderID {
			e.pending[instrumentID] = append(queue[:i], queue[i+1:]...)
			o.Status = orders.OrderStatusCancelled
			return o, nil
		}
	}
	return nil, fmt.Errorf("matching: order %s not queued for auction", orderID)
}

// PendingCount returns how many orders are queued for an instrument.
func (e *BatchEngine) PendingCount(instrumentID string) int {
	return len(e.pending[instrumentID])
}

// ExecuteAuction clears every order queued for instrumentID at a single
// uniform price and returns the resulting trades plus any orders left with
// quantity remaining (because they didn't cross, or the opposite side ran
// out), which the caller can hand to the continuous engine once the venue
// moves into continuous trading.
func (e *BatchEngine) ExecuteAuction(instrumentID string) ([]orders.Trade, []*orders.Order, error) {
	queue := e.pending[instrumentID]
	delete(e.pending, instrumentID)

	var buys, sells []*orders.Order
	for _, o := range queue {
		if o.Side == orders.SideBuy {
			buys = append(buys, o)
		} else {
			sells = append(sells, o)
		}
	}

	clear, ok := e.strategy.Clear(buys, sells)
	if !ok {
		return nil, queue, nil
	}

	crossingBuys := filterCrossing(buys, func(o *orders.Order) bool {
		return o.Type == orders.OrderTypeMarket || o.Price.GreaterThanOrEqual(clear.Price)
	})
	crossingSells := filterCrossing(sells, func(o *orders.Order) bool {
		return o.Type == orders.OrderTypeMarket || o.Price.LessThanOrEqual(clear.Price)
	})

	e.priorityOrder(crossingBuys, orders.SideBuy)
	e.priorityOrder(crossingSells, orders.SideSell)

	trades := e.allocate(crossingBuys, crossingSells, clear.Price, instrumentID)

	leftover := make([]*orders.Order, 0, len(queue))
	for _, o := range queue {
		if o.RemainingQty > 0 {
			leftover = append(leftover, o)
		}
	}

	return trades, leftover, nil
}

// priorityOrder sorts crossing orders for allocation: strictly
// better-than-clearing limit prices first (more aggressive first), market
// orders treated as maximally aggressive; orders tied on price (including
// all orders exactly at the clearing price) are shuffled, since the auction
// makes no time-priority promise within a single clearing price.
func (e *BatchEngine) priorityOrder(list []*orders.Order, side orders.Side) {
	e.rng.Shuffle(len(list), func(i, j int) { list[i], list[j] = list[j], list[i] })
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Type == orders.OrderTypeMarket {
			return b.Type != orders.OrderTypeMarket
		}
		if b.Type == orders.OrderTypeMarket {
			return false
		}
		if side == orders.SideBuy {
			return a.Price.GreaterThan(b.Price)
		}
		return a.Price.LessThan(b.Price)
	})
}

func filterCrossing(list []*orders.Order, keep func(*orders.Order) bool) []*orders.Order {
	out := make([]*orders.Order, 0, len(list))
	for _, o := range list {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// allocate walks both crossing lists with a two-pointer sweep, filling at
// the single clearing price until one side is exhausted.
func (e *BatchEngine) allocate(buys, sells []*orders.Order, price decimal.Decimal, instrumentID string) []orders.Trade {
	var trades []orders.Trade
	bi, si := 0, 0
	for bi < len(buys) && si < len(sells) {
		buy, sell := buys[bi], sells[si]
		qty := buy.RemainingQty
		if sell.RemainingQty < qty {
			qty = sell.RemainingQty
		}
		if qty <= 0 {
			break
		}

		trade := orders.Trade{
			ID:            uuid.NewString(),
			InstrumentID:  instrumentID,
			BuyOrderID:    buy.ID,
			SellOrderID:   sell.ID,
			BuyerID:       buy.TeamID,
			SellerID:      sell.TeamID,
			Price:         price,
			Quantity:      qty,
			Timestamp:     time.Now().UTC(),
			AggressorSide: orders.AggressorAuction,
		}
		trades = append(trades, trade)

		buy.RemainingQty -= qty
		sell.RemainingQty -= qty
		settleAuctionStatus(buy)
		settleAuctionStatus(sell)

		if buy.RemainingQty == 0 {
			bi++
		}
		if sell.RemainingQty == 0 {
			si++
		}
	}
	return trades
}

func settleAuctionStatus(o *orders.Order) {
	switch {
	case o.RemainingQty == 0:
		o.Status = orders.OrderStatusFilled
	case o.RemainingQty < o.Quantity:
		o.Status = orders.OrderStatusPartiallyFilled
	}
}
