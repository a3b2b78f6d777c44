package venue

import (
	"github.com/tradingfloor/exchange-core/internal/orderbook"
)

// BookView is a read-only handle on one instrument's continuous book,
// exposed to the HTTP layer without leaking the matching engine's internal
// types.
type BookView struct {
	book *orderbook.OrderBook
}

func (v *BookView) BidDepth(levels int) []orderbook.PriceLevelView { return v.book.BidDepth(levels) }
func (v *BookView) AskDepth(levels int) []orderbook.PriceLevelView { return v.book.AskDepth(levels) }
func (v *BookView) Spread() string                                { return v.book.Spread().String() }
func (v *BookView) MidPrice() string                              { return v.book.MidPrice().String() }
