package match

import "github.com/shopspring/decimal"

// comparePrice orders two price levels best-first for the given side:
// descending for bids, ascending for asks. Returns a negative value when a
// is better than b, positive when worse, zero when equal.
func comparePrice(side Side, a, b decimal.Decimal) int {
	cmp := a.Cmp(b)
	if side == Buy {
		return -cmp
	}
	return cmp
}

// compareOrders is the side-specific total order over resting orders:
// price priority first (direction flipped per side), arrival sequence
// second. An Order has no intrinsic ordering on its own; "better" only
// exists relative to a side.
func compareOrders(side Side, a, b *Order) int {
	if cmp := comparePrice(side, a.Price, b.Price); cmp != 0 {
		return cmp
	}

	switch {
	case a.sequence < b.sequence:
		return -1
	case a.sequence > b.sequence:
		return 1
	}
	return 0
}
