package match

import (
	"context"
	"math/rand"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs a few thousand random submissions through a book and checks the
// standing invariants after every single one: the book never stays crossed,
// no zero-quantity order rests, quantity is conserved across each match,
// and equal-priced makers fill in arrival order.
func TestSubmitInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	book := NewBook("ACME")
	go func() {
		_ = book.Start()
	}()
	t.Cleanup(func() {
		_ = book.Shutdown(context.Background())
	})

	ctx := context.Background()
	sequences := make(map[string]uint64)
	var restingTotal int64

	for i := 0; i < 5000; i++ {
		side := Buy
		if rng.Intn(2) == 0 {
			side = Sell
		}
		price := decimal.NewFromInt(int64(90 + rng.Intn(21))) // 90..110
		qty := int64(1 + rng.Intn(20))

		order, err := NewOrder(side, price, qty, xidLike(i))
		require.NoError(t, err)

		result, err := book.Submit(ctx, order)
		require.NoError(t, err)
		sequences[order.ID] = result.Sequence

		// Quantity conservation: what entered the book equals what
		// rested plus what traded away on both sides.
		filled := result.FilledQuantity()
		require.Equal(t, qty, filled+result.RestingQuantity)
		restingTotal += result.RestingQuantity - filled // each fill also removed `fill` from a maker
		require.GreaterOrEqual(t, result.RestingQuantity, int64(0))

		// Trades are best-price-first, and within a price level the
		// earlier maker fills first.
		for j := 1; j < len(result.Trades); j++ {
			prev, cur := result.Trades[j-1], result.Trades[j]
			cmp := comparePrice(side.Opposite(), prev.Price, cur.Price)
			require.LessOrEqual(t, cmp, 0, "trades must walk levels best-first")
			if cmp == 0 {
				require.Less(t, sequences[prev.MakerOrderID], sequences[cur.MakerOrderID],
					"equal price fills must respect arrival order")
			}
		}

		snap, err := book.Snapshot(ctx)
		require.NoError(t, err)

		var snapTotal int64
		for _, e := range append(append([]BookEntry{}, snap.Bids...), snap.Asks...) {
			require.Positive(t, e.Quantity, "no zero-quantity order may rest")
			snapTotal += e.Quantity
		}
		require.Equal(t, restingTotal, snapTotal)

		// No-cross invariant on the settled book.
		if len(snap.Bids) > 0 && len(snap.Asks) > 0 {
			require.True(t, snap.Bids[0].Price.LessThan(snap.Asks[0].Price),
				"best bid %s must be below best ask %s", snap.Bids[0].Price, snap.Asks[0].Price)
		}

		require.False(t, book.Poisoned())
	}
}

// Submitting an order that cannot cross leaves both best prices unchanged
// apart from the new resting entry itself.
func TestSubmitIdempotentRest(t *testing.T) {
	book := newTestBook(t)
	ctx := context.Background()

	mustSubmit(t, book, mustOrder(t, Buy, "95", 5, "b1"))
	mustSubmit(t, book, mustOrder(t, Sell, "105", 5, "s1"))

	before, err := book.Depth(ctx, 1)
	require.NoError(t, err)

	result := mustSubmit(t, book, mustOrder(t, Buy, "94", 3, "b2"))
	assert.Equal(t, StatusResting, result.Status)
	assert.Empty(t, result.Trades)

	after, err := book.Depth(ctx, 1)
	require.NoError(t, err)
	assert.True(t, before.Bids[0].Price.Equal(after.Bids[0].Price))
	assert.True(t, before.Asks[0].Price.Equal(after.Asks[0].Price))
	assert.Equal(t, before.Bids[0].Quantity, after.Bids[0].Quantity)
	assert.Equal(t, before.Asks[0].Quantity, after.Asks[0].Quantity)
}

func xidLike(i int) string {
	// Deterministic ids keep the failure output readable.
	return "ord-" + strconv.Itoa(i)
}
