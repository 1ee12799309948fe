package match

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side represents the order side (Buy/Sell).
type Side int8

const (
	Buy  Side = 1
	Sell Side = 2
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return "unknown"
}

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderStatus is the outcome of a submission.
type OrderStatus string

const (
	// StatusResting means no fill occurred and the full quantity rests.
	StatusResting OrderStatus = "resting"
	// StatusPartiallyFilled means some quantity traded and the remainder rests.
	StatusPartiallyFilled OrderStatus = "partially_filled"
	// StatusFullyFilled means the whole quantity traded. Terminal.
	StatusFullyFilled OrderStatus = "fully_filled"
)

// Order is a single intent to trade. Quantity is the remaining unfilled
// amount and is only ever reduced by the matching loop. The sequence number
// is assigned by the book at acceptance time and exists purely to break
// price ties by arrival; it is not a trading attribute.
type Order struct {
	ID       string
	Side     Side
	Price    decimal.Decimal
	Quantity int64

	sequence uint64

	// Intrusive FIFO pointers, owned by the price level the order rests in.
	next *Order
	prev *Order
}

// NewOrder validates and builds an order. The price must be strictly
// positive and the quantity a positive integer; anything else is rejected
// with ErrInvalidOrder before it can reach a book.
func NewOrder(side Side, price decimal.Decimal, quantity int64, id string) (*Order, error) {
	if side != Buy && side != Sell {
		return nil, fmt.Errorf("%w: side %d", ErrInvalidOrder, side)
	}
	if len(id) == 0 {
		return nil, fmt.Errorf("%w: empty order id", ErrInvalidOrder)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: price %s", ErrInvalidOrder, price)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity %d", ErrInvalidOrder, quantity)
	}

	return &Order{
		ID:       id,
		Side:     side,
		Price:    price,
		Quantity: quantity,
	}, nil
}

// Sequence returns the arrival sequence assigned at acceptance, or zero for
// an order that has not been submitted yet.
func (o *Order) Sequence() uint64 {
	return o.sequence
}

// crosses reports whether a resting order at restingPrice is matchable by
// this incoming order.
func (o *Order) crosses(restingPrice decimal.Decimal) bool {
	if o.Side == Buy {
		return restingPrice.LessThanOrEqual(o.Price)
	}
	return restingPrice.GreaterThanOrEqual(o.Price)
}
