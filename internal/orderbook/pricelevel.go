// Package orderbook implements the per-instrument limit order book: a
// red-black tree of price levels, each holding a FIFO queue of resting
// orders, giving price-time priority.
package orderbook

import (
	"github.com/shopspring/decimal"

	"github.com/tradingfloor/exchange-core/internal/orders"
)

// OrderNode is a node in the doubly-linked FIFO queue of orders resting at
// one price level. A doubly-linked list gives O(1) removal from anywhere in
// the queue, which matters because cancellation is not restricted to the
// head.
type OrderNode struct {
	Order *orders.Order
	prev  *OrderNode
	next  *OrderNode
	level *PriceLevel
}

func (n *OrderNode) Next() *OrderNode {
	return n.next
}

// PriceLevel holds every resting order at a single price, in arrival order.
type PriceLevel struct {
	Price    decimal.Decimal
	head     *OrderNode
	tail     *OrderNode
	count    int
	TotalQty int64
}

func NewPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{Price: price}
}

func (pl *PriceLevel) Count() int    { return pl.count }
func (pl *PriceLevel) IsEmpty() bool { return pl.count == 0 }
func (pl *PriceLevel) Head() *OrderNode {
	return pl.head
}

// Append adds an order to the tail of the queue (lowest priority at this
// price). Returns the node so the caller can cancel in O(1) later.
func (pl *PriceLevel) Append(order *orders.Order) *OrderNode {
	node := &OrderNode{Order: order, level: pl}
	if pl.tail == nil {
		pl.head = node
		pl.tail = node
	} else {
		node.prev = pl.tail
		pl.tail.next = node
		pl.tail = node
	}
	pl.count++
	pl.TotalQty += order.RemainingQty
	return node
}

// Remove splices a node out of the queue.
func (pl *PriceLevel) Remove(node *OrderNode) {
	if node == nil {
		return
	}
	pl.TotalQty -= node.Order.RemainingQty
	pl.count--

	if node.prev != nil {
		node.prev.next = node.next
	} else {
		pl.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		pl.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	node.level = nil
}

// AdjustQuantity adjusts TotalQty when a resting order is partially filled.
func (pl *PriceLevel) AdjustQuantity(delta int64) {
	pl.TotalQty += delta
}

// Orders returns every order at this level, oldest first. Allocates; use for
// depth snapshots and debugging, not the matching hot path.
func (pl *PriceLevel) Orders() []*orders.Order {
	result := make([]*orders.Order, 0, pl.count)
	for node := pl.head; node != nil; node = node.next {
		result = append(result, node.Order)
	}
	return result
}
