package match

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one fill between an incoming (taker) order and a resting (maker)
// order. The execution price is always the resting order's price: the
// standing order's price is honored under price-time priority.
type Trade struct {
	ID           uint64          `json:"id"` // sequential per book
	TakerOrderID string          `json:"taker_order_id"`
	MakerOrderID string          `json:"maker_order_id"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int64           `json:"quantity"`
	Notional     decimal.Decimal `json:"notional"` // Price * Quantity
	CreatedAt    time.Time       `json:"created_at"`
}

// SubmitResult reports everything a single submission did: the trades it
// produced, in execution order, and whether a remainder rested.
type SubmitResult struct {
	OrderID         string          `json:"order_id"`
	Side            Side            `json:"side"`
	Price           decimal.Decimal `json:"price"`
	Sequence        uint64          `json:"sequence"`
	Status          OrderStatus     `json:"status"`
	Trades          []*Trade        `json:"trades,omitempty"`
	RestingQuantity int64           `json:"resting_quantity"` // zero when fully filled
}

// FilledQuantity returns the total quantity traded by this submission.
func (r *SubmitResult) FilledQuantity() int64 {
	var total int64
	for _, t := range r.Trades {
		total += t.Quantity
	}
	return total
}

// TradePublisher receives every trade a book produces, in order.
// Implementations must not mutate the trades they are handed.
type TradePublisher interface {
	PublishTrades(...*Trade)
}

// MemoryTradePublisher stores trades in memory, useful for testing.
type MemoryTradePublisher struct {
	mu     sync.RWMutex
	trades []*Trade
}

// NewMemoryTradePublisher creates a new MemoryTradePublisher.
func NewMemoryTradePublisher() *MemoryTradePublisher {
	return &MemoryTradePublisher{
		trades: make([]*Trade, 0),
	}
}

// PublishTrades appends trades to the in-memory slice.
func (m *MemoryTradePublisher) PublishTrades(trades ...*Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, trades...)
}

// Count returns the number of trades stored.
func (m *MemoryTradePublisher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trades)
}

// Get returns the trade at the specified index.
func (m *MemoryTradePublisher) Get(index int) *Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trades[index]
}

// Trades returns a copy of all trades stored.
func (m *MemoryTradePublisher) Trades() []*Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trades := make([]*Trade, len(m.trades))
	copy(trades, m.trades)
	return trades
}

// DiscardTradePublisher drops all trades, useful for benchmarking.
type DiscardTradePublisher struct{}

// NewDiscardTradePublisher creates a new DiscardTradePublisher.
func NewDiscardTradePublisher() *DiscardTradePublisher {
	return &DiscardTradePublisher{}
}

// PublishTrades does nothing.
func (p *DiscardTradePublisher) PublishTrades(...*Trade) {}

// StreamTradePublisher hands trades to an asynchronous consumer through an
// MPSC ring buffer, decoupling the book loop from slow downstreams.
type StreamTradePublisher struct {
	ring *RingBuffer[*Trade]
}

// NewStreamTradePublisher creates a publisher backed by a ring buffer of the
// given capacity (a power of two) and starts its consumer.
func NewStreamTradePublisher(capacity int64, handler EventHandler[*Trade]) *StreamTradePublisher {
	ring := NewRingBuffer(capacity, handler)
	ring.Start()
	return &StreamTradePublisher{ring: ring}
}

// PublishTrades enqueues trades on the ring buffer.
func (p *StreamTradePublisher) PublishTrades(trades ...*Trade) {
	for _, trade := range trades {
		p.ring.Publish(trade)
	}
}

// Shutdown stops the consumer after draining pending trades.
func (p *StreamTradePublisher) Shutdown(ctx context.Context) error {
	return p.ring.Shutdown(ctx)
}

// Pending returns the number of trades not yet consumed.
func (p *StreamTradePublisher) Pending() int64 {
	return p.ring.Pending()
}
