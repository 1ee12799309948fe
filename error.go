package match

import "errors"

var (
	// ErrInvalidOrder rejects orders with non-positive price or quantity
	// at construction, before they can reach a book.
	ErrInvalidOrder = errors.New("order is invalid")

	// ErrDuplicateSequence reports an engine-internal invariant violation:
	// two orders assigned the same sequence number. Fatal to the book.
	ErrDuplicateSequence = errors.New("duplicate sequence number")

	// ErrCrossedBook reports a bid/ask cross observed after a submit
	// settled. Unreachable by construction; fatal to the book.
	ErrCrossedBook = errors.New("book is crossed")

	// ErrBookPoisoned is returned for every mutation attempted after a
	// fatal invariant violation.
	ErrBookPoisoned = errors.New("book is poisoned")

	ErrInvalidParam = errors.New("the param is invalid")
	ErrInternal     = errors.New("internal error")
	ErrTimeout      = errors.New("timeout")
	ErrShutdown     = errors.New("book is shutting down")
)
