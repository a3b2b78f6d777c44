package orderbook

import (
	"fmt"

	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"
	"github.com/shopspring/decimal"

	"github.com/tradingfloor/exchange-core/internal/orders"
)

// OrderBook maintains the bid and ask sides of a single instrument.
//
//	                    OrderBook
//	                        |
//	       +----------------+----------------+
//	       |                                 |
//	    bids (rbt, best = highest)      asks (rbt, best = lowest)
//	       |                                 |
//	    PriceLevel (FIFO queue)         PriceLevel (FIFO queue)
//
// Two red-black trees give O(log P) price-level insert/delete (P = number of
// distinct prices); an order-ID map gives O(1) cancel without walking the
// book.
type OrderBook struct {
	instrumentID string
	bids         *rbt.Tree[decimal.Decimal, *PriceLevel]
	asks         *rbt.Tree[decimal.Decimal, *PriceLevel]
	byID         map[string]*OrderNode
}

func NewOrderBook(instrumentID string) *OrderBook {
	descending := func(a, b decimal.Decimal) int { return b.Cmp(a) }
	ascending := func(a, b decimal.Decimal) int { return a.Cmp(b) }
	return &OrderBook{
		instrumentID: instrumentID,
		bids:         rbt.NewWith[decimal.Decimal, *PriceLevel](descending),
		asks:         rbt.NewWith[decimal.Decimal, *PriceLevel](ascending),
		byID:         make(map[string]*OrderNode),
	}
}

func (ob *OrderBook) InstrumentID() string { return ob.instrumentID }

// AddOrder rests an order on its side's book at its limit price.
func (ob *OrderBook) AddOrder(o *orders.Order) error {
	if _, exists := ob.byID[o.ID]; exists {
		return fmt.Errorf("orderbook: order %s already resting", o.ID)
	}
	tree := ob.treeFor(o.Side)
	level, found := tree.Get(o.Price)
	if !found {
		level = NewPriceLevel(o.Price)
		tree.Put(o.Price, level)
	}
	ob.byID[o.ID] = level.Append(o)
	return nil
}

// CancelOrder removes a resting order and returns it, or nil if not found.
func (ob *OrderBook) CancelOrder(orderID string) *orders.Order {
	node, exists := ob.byID[orderID]
	if !exists {
		return nil
	}
	o := node.Order
	level := node.level
	tree := ob.treeFor(o.Side)

	level.Remove(node)
	delete(ob.byID, orderID)
	if level.IsEmpty() {
		tree.Remove(level.Price)
	}
	return o
}

// GetOrder looks up a resting order by ID without removing it.
func (ob *OrderBook) GetOrder(orderID string) *orders.Order {
	node, exists := ob.byID[orderID]
	if !exists {
		return nil
	}
	return node.Order
}

// ApplyFill reduces a resting order's remaining quantity by qty, removing it
// from the book entirely once fully filled.
func (ob *OrderBook) ApplyFill(orderID string, qty int64) {
	node, exists := ob.byID[orderID]
	if !exists {
		return
	}
	node.Order.RemainingQty -= qty
	node.level.AdjustQuantity(-qty)
	if node.Order.RemainingQty <= 0 {
		ob.CancelOrder(orderID)
	}
}

// BestBid returns the highest bid level, or nil if the bid side is empty.
func (ob *OrderBook) BestBid() *PriceLevel {
	return ob.bestOf(ob.bids)
}

// BestAsk returns the lowest ask level, or nil if the ask side is empty.
func (ob *OrderBook) BestAsk() *PriceLevel {
	return ob.bestOf(ob.asks)
}

func (ob *OrderBook) bestOf(tree *rbt.Tree[decimal.Decimal, *PriceLevel]) *PriceLevel {
	node := tree.Left()
	if node == nil {
		return nil
	}
	return node.Value
}

// Spread returns best ask minus best bid; zero if either side is empty.
func (ob *OrderBook) Spread() decimal.Decimal {
	bid, ask := ob.BestBid(), ob.BestAsk()
	if bid == nil || ask == nil {
		return decimal.Zero
	}
	return ask.Price.Sub(bid.Price)
}

// MidPrice returns the midpoint of best bid and ask; zero if either is empty.
func (ob *OrderBook) MidPrice() decimal.Decimal {
	bid, ask := ob.BestBid(), ob.BestAsk()
	if bid == nil || ask == nil {
		return decimal.Zero
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2))
}

// OrdersByTeam returns every resting order belonging to a team, for the
// open-orders query endpoint. O(n) in book size.
func (ob *OrderBook) OrdersByTeam(teamID string) []*orders.Order {
	out := make([]*orders.Order, 0)
	for _, node := range ob.byID {
		if node.Order.TeamID == teamID {
			out = append(out, node.Order)
		}
	}
	return out
}

func (ob *OrderBook) BidLevelCount() int { return ob.bids.Size() }
func (ob *OrderBook) AskLevelCount() int { return ob.asks.Size() }
func (ob *OrderBook) TotalOrders() int   { return len(ob.byID) }

// PriceLevelView is a read-only depth row returned to callers outside this
// package (API responses, fan-out snapshots).
type PriceLevelView struct {
	Price    decimal.Decimal
	Quantity int64
	Orders   int
}

// BidDepth returns up to levels price rows, best first. levels <= 0 means
// all levels.
func (ob *OrderBook) BidDepth(levels int) []PriceLevelView {
	return ob.depth(ob.bids, levels)
}

// AskDepth returns up to levels price rows, best first. levels <= 0 means
// all levels.
func (ob *OrderBook) AskDepth(levels int) []PriceLevelView {
	return ob.depth(ob.asks, levels)
}

func (ob *OrderBook) depth(tree *rbt.Tree[decimal.Decimal, *PriceLevel], maxLevels int) []PriceLevelView {
	it := tree.Iterator()
	result := make([]PriceLevelView, 0)
	for it.Next() {
		level := it.Value()
		result = append(result, PriceLevelView{
			Price:    level.Price,
			Quantity: level.TotalQty,
			Orders:   level.Count(),
		})
		if maxLevels > 0 && len(result) >= maxLevels {
			break
		}
	}
	return result
}

// Drain removes every resting order from both sides and returns them, bids
// then asks, each side best price first and FIFO within a price level. Used
// when the venue cancels an entire book, e.g. on a transition into closed.
func (ob *OrderBook) Drain() []*orders.Order {
	var drained []*orders.Order
	for _, tree := range []*rbt.Tree[decimal.Decimal, *PriceLevel]{ob.bids, ob.asks} {
		it := tree.Iterator()
		var levels []*PriceLevel
		for it.Next() {
			levels = append(levels, it.Value())
		}
		for _, level := range levels {
			for node := level.Head(); node != nil; {
				next := node.Next()
				drained = append(drained, node.Order)
				node = next
			}
			tree.Remove(level.Price)
		}
	}
	ob.byID = make(map[string]*OrderNode)
	return drained
}

func (ob *OrderBook) treeFor(side orders.Side) *rbt.Tree[decimal.Decimal, *PriceLevel] {
	if side == orders.SideBuy {
		return ob.bids
	}
	return ob.asks
}
