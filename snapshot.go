package match

import "github.com/shopspring/decimal"

// BookEntry is one resting order as seen in a snapshot.
type BookEntry struct {
	ID       string          `json:"id"`
	Side     Side            `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	Sequence uint64          `json:"sequence"`
}

// BookSnapshot is the fully-settled state of a book: both sides best-first.
// It is only ever taken between submissions, never mid-match.
type BookSnapshot struct {
	Symbol       string      `json:"symbol"`
	LastSequence uint64      `json:"last_sequence"`
	LastTradeID  uint64      `json:"last_trade_id"`
	Bids         []BookEntry `json:"bids"`
	Asks         []BookEntry `json:"asks"`
}

// Depth is a bounded, aggregated view of both sides, best-first.
type Depth struct {
	UpdateID uint64        `json:"update_id"`
	Bids     []*DepthLevel `json:"bids"`
	Asks     []*DepthLevel `json:"asks"`
}

// BookStats contains counters about the book's two sides.
type BookStats struct {
	BidLevelCount int64 `json:"bid_level_count"`
	BidOrderCount int64 `json:"bid_order_count"`
	AskLevelCount int64 `json:"ask_level_count"`
	AskOrderCount int64 `json:"ask_order_count"`
}
