package store

import (
	"context"
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrStockRefused is returned when a guarded decrement would take stock below zero.
	ErrStockRefused = errors.New("insufficient stock")
	// ErrDuplicateOrderNumber is returned when another order already holds the number.
	ErrDuplicateOrderNumber = errors.New("order number already in use")
	// ErrConflict marks a transaction that lost a race or ran out of time. It is safe to retry.
	ErrConflict = errors.New("transaction conflict")
	// ErrUnavailable is returned without touching the database while it is considered down.
	ErrUnavailable = errors.New("database unavailable")
)

const (
	orderNumberIndex = "orders_order_number_key"
	stockCheck       = "books_stock_check"
)

// classify maps driver errors onto the package sentinels, wrapping the original.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &wrapped{sentinel: ErrConflict, err: err}
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "40001", "40P01", "55P03", "57014":
		return &wrapped{sentinel: ErrConflict, err: err}
	case "23505":
		if pqErr.Constraint == orderNumberIndex {
			return &wrapped{sentinel: ErrDuplicateOrderNumber, err: err}
		}
	case "23514":
		if pqErr.Constraint == stockCheck {
			return &wrapped{sentinel: ErrStockRefused, err: err}
		}
	}
	return err
}

type wrapped struct {
	sentinel error
	err      error
}

func (w *wrapped) Error() string { return w.sentinel.Error() + ": " + w.err.Error() }

func (w *wrapped) Is(target error) bool { return target == w.sentinel }

func (w *wrapped) Unwrap() error { return w.err }
