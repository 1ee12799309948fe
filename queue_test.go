package match

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restingOrder(side Side, price int64, qty int64, id string, seq uint64) *Order {
	return &Order{
		ID:       id,
		Side:     side,
		Price:    decimal.NewFromInt(price),
		Quantity: qty,
		sequence: seq,
	}
}

func TestQueueOrdering(t *testing.T) {
	t.Run("bid queue returns highest price first", func(t *testing.T) {
		q := newBidQueue()
		q.insertOrder(restingOrder(Buy, 90, 1, "b1", 1))
		q.insertOrder(restingOrder(Buy, 110, 1, "b2", 2))
		q.insertOrder(restingOrder(Buy, 100, 1, "b3", 3))

		assert.Equal(t, "b2", q.popHeadOrder().ID)
		assert.Equal(t, "b3", q.popHeadOrder().ID)
		assert.Equal(t, "b1", q.popHeadOrder().ID)
		assert.Nil(t, q.popHeadOrder())
	})

	t.Run("ask queue returns lowest price first", func(t *testing.T) {
		q := newAskQueue()
		q.insertOrder(restingOrder(Sell, 110, 1, "s1", 1))
		q.insertOrder(restingOrder(Sell, 90, 1, "s2", 2))
		q.insertOrder(restingOrder(Sell, 100, 1, "s3", 3))

		assert.Equal(t, "s2", q.popHeadOrder().ID)
		assert.Equal(t, "s3", q.popHeadOrder().ID)
		assert.Equal(t, "s1", q.popHeadOrder().ID)
	})

	t.Run("same price is FIFO by sequence", func(t *testing.T) {
		q := newAskQueue()
		q.insertOrder(restingOrder(Sell, 100, 1, "first", 1))
		q.insertOrder(restingOrder(Sell, 100, 1, "second", 2))
		q.insertOrder(restingOrder(Sell, 100, 1, "third", 3))

		assert.Equal(t, "first", q.popHeadOrder().ID)
		assert.Equal(t, "second", q.popHeadOrder().ID)
		assert.Equal(t, "third", q.popHeadOrder().ID)
	})

	t.Run("out of order insert is placed by sequence", func(t *testing.T) {
		// Snapshot restore can feed a level out of arrival order.
		q := newBidQueue()
		q.insertOrder(restingOrder(Buy, 100, 1, "late", 7))
		q.insertOrder(restingOrder(Buy, 100, 1, "early", 3))
		q.insertOrder(restingOrder(Buy, 100, 1, "middle", 5))

		assert.Equal(t, "early", q.popHeadOrder().ID)
		assert.Equal(t, "middle", q.popHeadOrder().ID)
		assert.Equal(t, "late", q.popHeadOrder().ID)
	})

	t.Run("equal prices with different scales share one level", func(t *testing.T) {
		q := newAskQueue()
		q.insertOrder(&Order{ID: "a", Side: Sell, Price: decimal.RequireFromString("100.0"), Quantity: 1, sequence: 1})
		q.insertOrder(&Order{ID: "b", Side: Sell, Price: decimal.NewFromInt(100), Quantity: 2, sequence: 2})

		assert.Equal(t, int64(1), q.levelCount())
		assert.Equal(t, int64(2), q.orderCount())
		assert.Equal(t, int64(3), q.totalQuantity())
	})
}

func TestQueueRemoveOrder(t *testing.T) {
	q := newBidQueue()
	q.insertOrder(restingOrder(Buy, 100, 5, "b1", 1))
	q.insertOrder(restingOrder(Buy, 100, 3, "b2", 2))
	q.insertOrder(restingOrder(Buy, 90, 2, "b3", 3))

	require.Equal(t, int64(3), q.orderCount())
	require.Equal(t, int64(2), q.levelCount())

	q.removeOrder(decimal.NewFromInt(100), "b1")
	assert.Nil(t, q.order("b1"))
	assert.Equal(t, int64(2), q.orderCount())
	assert.Equal(t, int64(2), q.levelCount())
	assert.Equal(t, "b2", q.peekHeadOrder().ID)

	// Removing the last order of a level drops the level.
	q.removeOrder(decimal.NewFromInt(100), "b2")
	assert.Equal(t, int64(1), q.levelCount())
	assert.Equal(t, "b3", q.peekHeadOrder().ID)

	// Unknown price and unknown id are both no-ops.
	q.removeOrder(decimal.NewFromInt(50), "b3")
	q.removeOrder(decimal.NewFromInt(90), "nope")
	assert.Equal(t, int64(1), q.orderCount())
}

func TestQueueReduceQuantity(t *testing.T) {
	q := newAskQueue()
	q.insertOrder(restingOrder(Sell, 100, 10, "s1", 1))
	q.insertOrder(restingOrder(Sell, 100, 4, "s2", 2))

	q.reduceQuantity("s1", 6)

	head := q.peekHeadOrder()
	require.NotNil(t, head)
	assert.Equal(t, "s1", head.ID, "partial fill keeps priority")
	assert.Equal(t, int64(4), head.Quantity)
	assert.Equal(t, int64(8), q.totalQuantity())
	assert.Equal(t, int64(2), q.orderCount())
}

func TestQueueDepth(t *testing.T) {
	q := newAskQueue()
	q.insertOrder(restingOrder(Sell, 100, 5, "s1", 1))
	q.insertOrder(restingOrder(Sell, 100, 3, "s2", 2))
	q.insertOrder(restingOrder(Sell, 110, 7, "s3", 3))
	q.insertOrder(restingOrder(Sell, 120, 1, "s4", 4))

	levels := q.depth(2)
	require.Len(t, levels, 2)
	assert.True(t, levels[0].Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, int64(8), levels[0].Quantity)
	assert.Equal(t, int64(2), levels[0].Orders)
	assert.True(t, levels[1].Price.Equal(decimal.NewFromInt(110)))
	assert.Equal(t, int64(7), levels[1].Quantity)

	assert.Len(t, q.depth(10), 3)
}

func TestQueueToSnapshot(t *testing.T) {
	q := newBidQueue()
	q.insertOrder(restingOrder(Buy, 90, 2, "b1", 1))
	q.insertOrder(restingOrder(Buy, 100, 5, "b2", 2))
	q.insertOrder(restingOrder(Buy, 100, 3, "b3", 3))

	entries := q.toSnapshot()
	require.Len(t, entries, 3)
	assert.Equal(t, "b2", entries[0].ID)
	assert.Equal(t, "b3", entries[1].ID)
	assert.Equal(t, "b1", entries[2].ID)
	assert.Equal(t, uint64(2), entries[0].Sequence)
}

func TestQueueBestPrice(t *testing.T) {
	q := newBidQueue()
	_, ok := q.bestPrice()
	assert.False(t, ok)

	q.insertOrder(restingOrder(Buy, 90, 1, "b1", 1))
	q.insertOrder(restingOrder(Buy, 95, 1, "b2", 2))

	best, ok := q.bestPrice()
	require.True(t, ok)
	assert.True(t, best.Equal(decimal.NewFromInt(95)))
}
