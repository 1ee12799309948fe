package match

import (
	"fmt"

	"github.com/igrmk/treemap/v2"
	"github.com/shopspring/decimal"
)

// AggregatedDepth maintains a simplified view of a book, tracking only
// price levels and their aggregated resting quantities. It is rebuilt from
// the SubmitResults a book hands back, so a renderer can follow the book
// without touching its internals. Not safe for concurrent use.
type AggregatedDepth struct {
	lastSequence uint64
	bids         *treemap.TreeMap[decimal.Decimal, int64]
	asks         *treemap.TreeMap[decimal.Decimal, int64]
}

// NewAggregatedDepth creates an empty depth view.
func NewAggregatedDepth() *AggregatedDepth {
	less := func(a, b decimal.Decimal) bool {
		return a.LessThan(b)
	}
	return &AggregatedDepth{
		bids: treemap.NewWithKeyCompare[decimal.Decimal, int64](less),
		asks: treemap.NewWithKeyCompare[decimal.Decimal, int64](less),
	}
}

// LastSequence returns the sequence of the last applied result, used to
// detect gaps when results arrive through a queue.
func (d *AggregatedDepth) LastSequence() uint64 {
	return d.lastSequence
}

// Apply folds one submission into the view: each trade removes its fill
// from the maker side at the trade price, and any remainder adds to the
// taker's own side. Results must be applied in sequence order.
func (d *AggregatedDepth) Apply(result *SubmitResult) error {
	if result == nil {
		return ErrInvalidParam
	}
	if result.Sequence != d.lastSequence+1 {
		return fmt.Errorf("%w: depth view at sequence %d got result %d",
			ErrInvalidParam, d.lastSequence, result.Sequence)
	}

	makerSide := d.side(result.Side.Opposite())
	for _, trade := range result.Trades {
		d.reduce(makerSide, trade.Price, trade.Quantity)
	}

	if result.RestingQuantity > 0 {
		d.add(d.side(result.Side), result.Price, result.RestingQuantity)
	}

	d.lastSequence = result.Sequence
	return nil
}

func (d *AggregatedDepth) side(s Side) *treemap.TreeMap[decimal.Decimal, int64] {
	if s == Buy {
		return d.bids
	}
	return d.asks
}

func (d *AggregatedDepth) add(m *treemap.TreeMap[decimal.Decimal, int64], price decimal.Decimal, qty int64) {
	current, _ := m.Get(price)
	m.Set(price, current+qty)
}

func (d *AggregatedDepth) reduce(m *treemap.TreeMap[decimal.Decimal, int64], price decimal.Decimal, qty int64) {
	current, ok := m.Get(price)
	if !ok {
		return
	}
	if current <= qty {
		m.Del(price)
		return
	}
	m.Set(price, current-qty)
}

// Quantity returns the aggregated resting quantity at a price level, or
// zero if the level does not exist.
func (d *AggregatedDepth) Quantity(side Side, price decimal.Decimal) int64 {
	qty, _ := d.side(side).Get(price)
	return qty
}

// Levels returns up to limit levels for the side, best-first.
func (d *AggregatedDepth) Levels(side Side, limit int) []*DepthLevel {
	result := make([]*DepthLevel, 0, limit)

	if side == Buy {
		for it := d.bids.Reverse(); it.Valid() && len(result) < limit; it.Next() {
			result = append(result, &DepthLevel{Price: it.Key(), Quantity: it.Value()})
		}
		return result
	}

	for it := d.asks.Iterator(); it.Valid() && len(result) < limit; it.Next() {
		result = append(result, &DepthLevel{Price: it.Key(), Quantity: it.Value()})
	}
	return result
}
