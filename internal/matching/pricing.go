package matching

import (
	"github.com/shopspring/decimal"

	"github.com/tradingfloor/exchange-core/internal/orders"
)

// ClearResult is the outcome of a pricing strategy's search for a uniform
// clearing price.
type ClearResult struct {
	Price  decimal.Decimal
	Volume int64
}

// PricingStrategy picks the single uniform price an opening auction clears
// at, given every buy and sell order pending for an instrument. The second
// return value is false when no price crosses (no trade should occur).
type PricingStrategy interface {
	Clear(buys, sells []*orders.Order) (ClearResult, bool)
}

// candidatePrices returns the distinct limit prices present on either side,
// which are the only prices where supply/demand volume can change step.
func candidatePrices(buys, sells []*orders.Order) []decimal.Decimal {
	seen := make(map[string]decimal.Decimal)
	for _, o := range buys {
		if o.Type == orders.OrderTypeLimit {
			seen[o.Price.String()] = o.Price
		}
	}
	for _, o := range sells {
		if o.Type == orders.OrderTypeLimit {
			seen[o.Price.String()] = o.Price
		}
	}
	out := make([]decimal.Decimal, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	return out
}

// volumeAt returns the quantity each side would supply at a candidate
// clearing price: buy orders willing to pay >= price, sell orders willing to
// accept <= price; market orders always participate.
func volumeAt(buys, sells []*orders.Order, price decimal.Decimal) (buyVol, sellVol int64) {
	for _, o := range buys {
		if o.Type == orders.OrderTypeMarket || o.Price.GreaterThanOrEqual(price) {
			buyVol += o.RemainingQty
		}
	}
	for _, o := range sells {
		if o.Type == orders.OrderTypeMarket || o.Price.LessThanOrEqual(price) {
			sellVol += o.RemainingQty
		}
	}
	return buyVol, sellVol
}

func tradeableVolume(buyVol, sellVol int64) int64 {
	if buyVol < sellVol {
		return buyVol
	}
	return sellVol
}

// MaximumVolumeStrategy picks the candidate price that clears the most
// volume. When several candidates tie, it clears at the midpoint of the
// tied price range, per the "maximum volume with midpoint tiebreak" rule.
type MaximumVolumeStrategy struct{}

func (MaximumVolumeStrategy) Clear(buys, sells []*orders.Order) (ClearResult, bool) {
	candidates := candidatePrices(buys, sells)
	if len(candidates) == 0 {
		return ClearResult{}, false
	}

	var best int64 = -1
	var tied []decimal.Decimal
	for _, p := range candidates {
		buyVol, sellVol := volumeAt(buys, sells, p)
		vol := tradeableVolume(buyVol, sellVol)
		switch {
		case vol > best:
			best = vol
			tied = []decimal.Decimal{p}
		case vol == best:
			tied = append(tied, p)
		}
	}
	if best <= 0 {
		return ClearResult{}, false
	}

	return ClearResult{Price: midpoint(tied), Volume: best}, true
}

// EquilibriumStrategy reproduces the legacy clearing rule: the auction
// clears at the price of the best ask, provided it crosses the best bid.
// Unlike MaximumVolumeStrategy it does not search for the volume-maximizing
// candidate; it always settles on the best ask's price.
type EquilibriumStrategy struct{}

func (EquilibriumStrategy) Clear(buys, sells []*orders.Order) (ClearResult, bool) {
	bestBid, hasBid := bestLimitPrice(buys, func(a, b decimal.Decimal) bool { return a.GreaterThan(b) })
	bestAsk, hasAsk := bestLimitPrice(sells, func(a, b decimal.Decimal) bool { return a.LessThan(b) })

	var clearPrice decimal.Decimal
	switch {
	case hasAsk:
		clearPrice = bestAsk
	case hasMarketOrder(sells) && hasBid:
		// An unpriced market sell crosses whatever the best bid offers.
		clearPrice = bestBid
	default:
		return ClearResult{}, false
	}

	crosses := hasMarketOrder(buys) || hasMarketOrder(sells) || (hasBid && bestBid.GreaterThanOrEqual(clearPrice))
	if !crosses {
		return ClearResult{}, false
	}

	buyVol, sellVol := volumeAt(buys, sells, clearPrice)
	vol := tradeableVolume(buyVol, sellVol)
	if vol <= 0 {
		return ClearResult{}, false
	}
	return ClearResult{Price: clearPrice, Volume: vol}, true
}

// bestLimitPrice scans only limit orders (market orders carry no price),
// returning the one preferred by less, e.g. highest bid or lowest ask.
func bestLimitPrice(list []*orders.Order, less func(candidate, current decimal.Decimal) bool) (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, o := range list {
		if o.Type != orders.OrderTypeLimit {
			continue
		}
		if !found || less(o.Price, best) {
			best = o.Price
			found = true
		}
	}
	return best, found
}

func hasMarketOrder(list []*orders.Order) bool {
	for _, o := range list {
		if o.Type == orders.OrderTypeMarket {
			return true
		}
	}
	return false
}

func midpoint(prices []decimal.Decimal) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	lo, hi := prices[0], prices[0]
	for _, p := range prices[1:] {
		if p.LessThan(lo) {
			lo = p
		}
		if p.GreaterThan(hi) {
			hi = p
		}
	}
	return lo.Add(hi).Div(decimal.NewFromInt(2))
}

func closestTo(prices []decimal.Decimal, target decimal.Decimal) decimal.Decimal {
	best := prices[0]
	bestDist := best.Sub(target).Abs()
	for _, p := range prices[1:] {
		d := p.Sub(target).Abs()
		if d.LessThan(bestDist) {
			best = p
			bestDist = d
		}
	}
	return best
}
