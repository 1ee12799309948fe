package match

import (
	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

// priceLevel is one price point on a book side: a FIFO of resting orders
// linked through their intrusive pointers, plus the aggregated quantity.
type priceLevel struct {
	price         decimal.Decimal
	totalQuantity int64
	head          *Order
	tail          *Order
	count         int64
}

// DepthLevel is one aggregated entry of a depth listing.
type DepthLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	Orders   int64           `json:"orders"`
}

// queue holds one side of the book. Price levels live in a skip list
// ordered best-first by the side's comparator; orders within a level are
// kept in ascending sequence order, which for engine-assigned monotonic
// sequences is plain FIFO.
type queue struct {
	side        Side
	totalOrders int64
	levels      int64
	levelList   *skiplist.SkipList
	priceIndex  map[string]*skiplist.Element
	orders      map[string]*Order
}

func newQueue(side Side) *queue {
	return &queue{
		side: side,
		levelList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return comparePrice(side, d1, d2)
		})),
		priceIndex: make(map[string]*skiplist.Element),
		orders:     make(map[string]*Order),
	}
}

// newBidQueue creates the buy side: highest price first.
func newBidQueue() *queue {
	return newQueue(Buy)
}

// newAskQueue creates the sell side: lowest price first.
func newAskQueue() *queue {
	return newQueue(Sell)
}

// order finds a resting order by its ID.
func (q *queue) order(id string) *Order {
	return q.orders[id]
}

// insertOrder rests an order on this side. Within its price level the order
// is placed by ascending sequence; since the book assigns sequences
// monotonically this is an O(1) append, the walk only exists to keep the
// level ordered if it is ever fed out of order (snapshot restore).
func (q *queue) insertOrder(order *Order) {
	key := order.Price.String()

	el, ok := q.priceIndex[key]
	if !ok {
		unit := &priceLevel{
			price:         order.Price,
			head:          order,
			tail:          order,
			totalQuantity: order.Quantity,
			count:         1,
		}
		order.next = nil
		order.prev = nil

		q.orders[order.ID] = order
		q.priceIndex[key] = q.levelList.Set(order.Price, unit)
		q.totalOrders++
		q.levels++
		return
	}

	unit, _ := el.Value.(*priceLevel)

	at := unit.tail
	for at != nil && compareOrders(q.side, at, order) > 0 {
		at = at.prev
	}

	if at == nil {
		order.prev = nil
		order.next = unit.head
		if unit.head != nil {
			unit.head.prev = order
		}
		unit.head = order
		if unit.tail == nil {
			unit.tail = order
		}
	} else {
		order.prev = at
		order.next = at.next
		if at.next != nil {
			at.next.prev = order
		} else {
			unit.tail = order
		}
		at.next = order
	}

	unit.totalQuantity += order.Quantity
	unit.count++
	q.orders[order.ID] = order
	q.totalOrders++
}

// removeOrder removes an order by price and ID, dropping the price level
// once it holds no orders.
func (q *queue) removeOrder(price decimal.Decimal, id string) {
	key := price.String()

	el, ok := q.priceIndex[key]
	if !ok {
		return
	}
	unit, _ := el.Value.(*priceLevel)

	order, ok := q.orders[id]
	if !ok {
		return
	}

	if order.prev != nil {
		order.prev.next = order.next
	} else {
		unit.head = order.next
	}

	if order.next != nil {
		order.next.prev = order.prev
	} else {
		unit.tail = order.prev
	}

	order.next = nil
	order.prev = nil

	unit.totalQuantity -= order.Quantity
	unit.count--
	delete(q.orders, id)
	q.totalOrders--

	if unit.count == 0 {
		q.levelList.RemoveElement(el)
		delete(q.priceIndex, key)
		q.levels--
	}
}

// reduceQuantity shrinks a resting order in place after a partial fill.
// Price and sequence are untouched, so the order keeps its priority.
func (q *queue) reduceQuantity(id string, fill int64) {
	order, ok := q.orders[id]
	if !ok {
		return
	}

	el, ok := q.priceIndex[order.Price.String()]
	if !ok {
		return
	}

	unit, _ := el.Value.(*priceLevel)
	unit.totalQuantity -= fill
	order.Quantity -= fill
}

// peekHeadOrder returns the best resting order without removing it.
func (q *queue) peekHeadOrder() *Order {
	el := q.levelList.Front()
	if el == nil {
		return nil
	}

	unit, _ := el.Value.(*priceLevel)
	return unit.head
}

// popHeadOrder removes and returns the best resting order.
func (q *queue) popHeadOrder() *Order {
	ord := q.peekHeadOrder()
	if ord != nil {
		q.removeOrder(ord.Price, ord.ID)
	}
	return ord
}

// bestPrice returns the best resting price, if the side is non-empty.
func (q *queue) bestPrice() (decimal.Decimal, bool) {
	el := q.levelList.Front()
	if el == nil {
		return decimal.Decimal{}, false
	}

	unit, _ := el.Value.(*priceLevel)
	return unit.price, true
}

// orderCount returns the number of resting orders on this side.
func (q *queue) orderCount() int64 {
	return q.totalOrders
}

// levelCount returns the number of occupied price levels.
func (q *queue) levelCount() int64 {
	return q.levels
}

// totalQuantity returns the sum of resting quantities across all levels.
func (q *queue) totalQuantity() int64 {
	var total int64
	for el := q.levelList.Front(); el != nil; el = el.Next() {
		unit, _ := el.Value.(*priceLevel)
		total += unit.totalQuantity
	}
	return total
}

// depth returns the aggregated levels best-first, up to limit.
func (q *queue) depth(limit uint32) []*DepthLevel {
	result := make([]*DepthLevel, 0, limit)

	el := q.levelList.Front()
	var i uint32
	for i < limit && el != nil {
		unit, _ := el.Value.(*priceLevel)
		result = append(result, &DepthLevel{
			Price:    unit.price,
			Quantity: unit.totalQuantity,
			Orders:   unit.count,
		})
		el = el.Next()
		i++
	}

	return result
}

// toSnapshot serializes the side best-first, walking price levels and then
// each level's FIFO so the result is totally ordered by the side comparator.
func (q *queue) toSnapshot() []BookEntry {
	entries := make([]BookEntry, 0, q.totalOrders)

	for el := q.levelList.Front(); el != nil; el = el.Next() {
		unit, _ := el.Value.(*priceLevel)
		for order := unit.head; order != nil; order = order.next {
			entries = append(entries, BookEntry{
				ID:       order.ID,
				Side:     order.Side,
				Price:    order.Price,
				Quantity: order.Quantity,
				Sequence: order.sequence,
			})
		}
	}

	return entries
}
