package match

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type commandKind uint8

const (
	cmdSubmit commandKind = iota + 1
	cmdSnapshot
	cmdDepth
	cmdStats
)

// command is the unified carrier for everything entering the book loop.
// A single channel keeps ordering deterministic.
type command struct {
	kind  commandKind
	order *Order
	limit uint32
	resp  chan any
}

type submitResponse struct {
	result *SubmitResult
	err    error
}

// BookOption configures a Book at construction.
type BookOption func(*Book)

// WithTradePublisher sets the publisher that receives every trade produced.
func WithTradePublisher(p TradePublisher) BookOption {
	return func(b *Book) {
		if p != nil {
			b.publisher = p
		}
	}
}

// WithCommandBuffer sets the capacity of the book's command channel.
func WithCommandBuffer(n int) BookOption {
	return func(b *Book) {
		if n > 0 {
			b.cmdBuffer = n
		}
	}
}

// Book is a single-instrument limit order book. All mutation runs on one
// consumer goroutine (Start); Submit and the read operations talk to it
// through the command channel and get their answers over per-call response
// channels, so a submission's full matching loop never interleaves with
// another.
type Book struct {
	symbol     string
	isShutdown atomic.Bool
	poisoned   atomic.Bool

	// Owned by the loop goroutine. lastSequence is the time-priority
	// counter; assigning it is atomic with acceptance because both happen
	// inside the single consumer.
	lastSequence uint64
	lastTradeID  uint64
	bids         *queue
	asks         *queue

	cmdBuffer        int
	cmdChan          chan command
	done             chan struct{}
	shutdownComplete chan struct{}
	publisher        TradePublisher
}

// NewBook creates a book for one instrument. The returned book is inert
// until Start runs its loop; call Start before submitting.
func NewBook(symbol string, opts ...BookOption) *Book {
	b := &Book{
		symbol:    symbol,
		bids:      newBidQueue(),
		asks:      newAskQueue(),
		cmdBuffer: 32768,
		publisher: NewDiscardTradePublisher(),
	}

	for _, opt := range opts {
		opt(b)
	}

	b.cmdChan = make(chan command, b.cmdBuffer)
	b.done = make(chan struct{})
	b.shutdownComplete = make(chan struct{})

	return b
}

// Symbol returns the instrument this book trades.
func (b *Book) Symbol() string {
	return b.symbol
}

// Poisoned reports whether the book hit a fatal invariant violation and
// rejects further mutation.
func (b *Book) Poisoned() bool {
	return b.poisoned.Load()
}

// Start runs the book loop until Shutdown is called, then drains pending
// commands and returns nil.
func (b *Book) Start() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-b.done:
			return b.drain()
		case cmd := <-b.cmdChan:
			b.handle(cmd)
		}
	}
}

// Shutdown signals the loop to stop accepting new commands and blocks until
// everything already queued has been processed or the context expires.
func (b *Book) Shutdown(ctx context.Context) error {
	if b.isShutdown.CompareAndSwap(false, true) {
		close(b.done)
	}

	select {
	case <-b.shutdownComplete:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain processes all remaining commands before returning.
func (b *Book) drain() error {
	defer close(b.shutdownComplete)

	for {
		select {
		case cmd := <-b.cmdChan:
			b.handle(cmd)
		default:
			return nil
		}
	}
}

func (b *Book) handle(cmd command) {
	switch cmd.kind {
	case cmdSubmit:
		result, err := b.submit(cmd.order)
		b.reply(cmd.resp, &submitResponse{result: result, err: err})
	case cmdSnapshot:
		b.reply(cmd.resp, b.snapshot())
	case cmdDepth:
		b.reply(cmd.resp, &Depth{
			UpdateID: b.lastSequence,
			Bids:     b.bids.depth(cmd.limit),
			Asks:     b.asks.depth(cmd.limit),
		})
	case cmdStats:
		b.reply(cmd.resp, &BookStats{
			BidLevelCount: b.bids.levelCount(),
			BidOrderCount: b.bids.orderCount(),
			AskLevelCount: b.asks.levelCount(),
			AskOrderCount: b.asks.orderCount(),
		})
	}
}

// reply never blocks the loop; if the caller is gone the answer is dropped.
func (b *Book) reply(resp chan any, v any) {
	if resp == nil {
		return
	}
	select {
	case resp <- v:
	default:
	}
}

// Submit runs one order to a fixed point against the opposite side and
// returns the trades produced plus the resting outcome. The call is
// synchronous: when it returns, the book is settled and non-crossing.
// The loop (Start) must be running; without it, Submit and the read
// operations block until ctx is done.
func (b *Book) Submit(ctx context.Context, order *Order) (*SubmitResult, error) {
	if b.isShutdown.Load() {
		return nil, ErrShutdown
	}
	if order == nil {
		return nil, ErrInvalidParam
	}

	resp := make(chan any, 1)

	select {
	case b.cmdChan <- command{kind: cmdSubmit, order: order, resp: resp}:
	case <-b.done:
		return nil, ErrShutdown
	case <-ctx.Done():
		return nil, ErrTimeout
	}

	select {
	case res := <-resp:
		sr, ok := res.(*submitResponse)
		if !ok {
			return nil, ErrInternal
		}
		return sr.result, sr.err
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}

// Snapshot returns the settled state of both sides, best-first. It goes
// through the command loop, so it can never observe a mid-match cross.
func (b *Book) Snapshot(ctx context.Context) (*BookSnapshot, error) {
	res, err := b.query(ctx, command{kind: cmdSnapshot})
	if err != nil {
		return nil, err
	}
	snap, _ := res.(*BookSnapshot)
	return snap, nil
}

// Depth returns the aggregated levels of both sides up to limit.
func (b *Book) Depth(ctx context.Context, limit uint32) (*Depth, error) {
	if limit == 0 {
		return nil, ErrInvalidParam
	}
	res, err := b.query(ctx, command{kind: cmdDepth, limit: limit})
	if err != nil {
		return nil, err
	}
	depth, _ := res.(*Depth)
	return depth, nil
}

// Stats returns usage counters for the book.
func (b *Book) Stats(ctx context.Context) (*BookStats, error) {
	res, err := b.query(ctx, command{kind: cmdStats})
	if err != nil {
		return nil, err
	}
	stats, _ := res.(*BookStats)
	return stats, nil
}

func (b *Book) query(ctx context.Context, cmd command) (any, error) {
	cmd.resp = make(chan any, 1)

	select {
	case b.cmdChan <- cmd:
	case <-b.done:
		return nil, ErrShutdown
	case <-ctx.Done():
		return nil, ErrTimeout
	}

	select {
	case res := <-cmd.resp:
		return res, nil
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}

// submit is the matching core. It runs on the loop goroutine only.
func (b *Book) submit(incoming *Order) (*SubmitResult, error) {
	if b.poisoned.Load() {
		return nil, ErrBookPoisoned
	}

	if incoming.Quantity <= 0 || !incoming.Price.IsPositive() {
		return nil, fmt.Errorf("%w: order %s", ErrInvalidOrder, incoming.ID)
	}
	if incoming.sequence != 0 {
		// An order is submitted exactly once.
		return nil, fmt.Errorf("%w: order %s was already submitted", ErrInvalidOrder, incoming.ID)
	}

	seq := b.lastSequence + 1
	if seq <= b.lastSequence {
		// Counter wrapped: a later order would repeat an assigned
		// sequence and corrupt time priority.
		b.poison("sequence counter wrapped", ErrDuplicateSequence)
		return nil, ErrDuplicateSequence
	}
	b.lastSequence = seq
	incoming.sequence = seq

	own, opposite := b.bids, b.asks
	if incoming.Side == Sell {
		own, opposite = b.asks, b.bids
	}

	result := &SubmitResult{
		OrderID:  incoming.ID,
		Side:     incoming.Side,
		Price:    incoming.Price,
		Sequence: seq,
	}
	now := time.Now().UTC()

	for incoming.Quantity > 0 {
		top := opposite.peekHeadOrder()
		if top == nil || !incoming.crosses(top.Price) {
			break
		}

		fill := min(top.Quantity, incoming.Quantity)

		b.lastTradeID++
		result.Trades = append(result.Trades, &Trade{
			ID:           b.lastTradeID,
			TakerOrderID: incoming.ID,
			MakerOrderID: top.ID,
			Price:        top.Price,
			Quantity:     fill,
			Notional:     top.Price.Mul(decimal.NewFromInt(fill)),
			CreatedAt:    now,
		})

		incoming.Quantity -= fill

		if fill == top.Quantity {
			opposite.popHeadOrder()
		} else {
			// Partial fill of the head: shrink in place, priority kept.
			opposite.reduceQuantity(top.ID, fill)
		}
	}

	switch {
	case incoming.Quantity == 0:
		result.Status = StatusFullyFilled
	case len(result.Trades) > 0:
		own.insertOrder(incoming)
		result.Status = StatusPartiallyFilled
		result.RestingQuantity = incoming.Quantity
	default:
		own.insertOrder(incoming)
		result.Status = StatusResting
		result.RestingQuantity = incoming.Quantity
	}

	if err := b.checkNoCross(); err != nil {
		return nil, err
	}

	if len(result.Trades) > 0 {
		b.publisher.PublishTrades(result.Trades...)
	}

	return result, nil
}

// checkNoCross asserts best bid < best ask once a submit has settled.
// A failure is unreachable by construction and poisons the book.
func (b *Book) checkNoCross() error {
	bestBid, okBid := b.bids.bestPrice()
	bestAsk, okAsk := b.asks.bestPrice()
	if okBid && okAsk && bestBid.GreaterThanOrEqual(bestAsk) {
		b.poison("book crossed after settle", ErrCrossedBook)
		return ErrCrossedBook
	}
	return nil
}

func (b *Book) poison(reason string, cause error) {
	b.poisoned.Store(true)
	logger.Error("book poisoned",
		zap.String("symbol", b.symbol),
		zap.String("reason", reason),
		zap.Error(cause),
	)
}

func (b *Book) snapshot() *BookSnapshot {
	return &BookSnapshot{
		Symbol:       b.symbol,
		LastSequence: b.lastSequence,
		LastTradeID:  b.lastTradeID,
		Bids:         b.bids.toSnapshot(),
		Asks:         b.asks.toSnapshot(),
	}
}

// Restore rebuilds the book from a settled snapshot. Must be called before
// Start; entries keep their original sequence numbers so time priority
// survives the round trip.
func (b *Book) Restore(snap *BookSnapshot) error {
	if snap == nil {
		return ErrInvalidParam
	}

	b.lastSequence = snap.LastSequence
	b.lastTradeID = snap.LastTradeID
	b.bids = newBidQueue()
	b.asks = newAskQueue()

	restore := func(entries []BookEntry, q *queue) {
		for _, e := range entries {
			q.insertOrder(&Order{
				ID:       e.ID,
				Side:     e.Side,
				Price:    e.Price,
				Quantity: e.Quantity,
				sequence: e.Sequence,
			})
		}
	}

	restore(snap.Bids, b.bids)
	restore(snap.Asks, b.asks)

	return b.checkNoCross()
}
