// Package feed reads order records from JSON files and converts them into
// core orders. The wire format is the classic replay file:
//
//	{"orders": [{"order_type": 1, "price": 100, "qty": 5, "order_id": "2"}]}
//
// where order_type 1 is a buy and 0 a sell. Prices are decoded exactly,
// never through float64.
package feed

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"

	match "github.com/axon-trading/limitbook"
)

// Record is one order record as it appears on the wire.
type Record struct {
	OrderType int         `json:"order_type"` // 1 buy, 0 sell
	Price     json.Number `json:"price"`
	Qty       int64       `json:"qty"`
	OrderID   string      `json:"order_id"`
}

type ordersFile struct {
	Orders []Record `json:"orders"`
}

// ReadFile loads all records from a replay file, in file order.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed: open %s: %w", path, err)
	}
	defer f.Close()

	var file ordersFile
	dec := json.NewDecoder(f)
	dec.UseNumber()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("feed: decode %s: %w", path, err)
	}

	return file.Orders, nil
}

// Order converts a record into a validated core order. A record without an
// id gets a generated one; a malformed record fails with ErrInvalidOrder
// semantics and must be skipped by the caller, never partially processed.
func (r Record) Order() (*match.Order, error) {
	var side match.Side
	switch r.OrderType {
	case 1:
		side = match.Buy
	case 0:
		side = match.Sell
	default:
		return nil, fmt.Errorf("record %q: %w: order_type %d", r.OrderID, match.ErrInvalidOrder, r.OrderType)
	}

	price, err := decimal.NewFromString(r.Price.String())
	if err != nil {
		return nil, fmt.Errorf("record %q: %w: price %q", r.OrderID, match.ErrInvalidOrder, r.Price)
	}

	id := r.OrderID
	if len(id) == 0 {
		id = xid.New().String()
	}

	order, err := match.NewOrder(side, price, r.Qty, id)
	if err != nil {
		return nil, fmt.Errorf("record %q: %w", r.OrderID, err)
	}
	return order, nil
}
