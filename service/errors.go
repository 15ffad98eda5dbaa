package service

import (
	"errors"
	"fmt"

	models "github.com/sagrvma/bookstore/model"
	"github.com/sagrvma/bookstore/store"
)

// ErrEmptyCart is returned when checkout finds no cart or no lines in it.
var ErrEmptyCart = errors.New("cart is empty")

// ValidationError reports missing or malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Field + " " + e.Reason }

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// BookNotFoundError reports a book that no longer exists in the catalog.
type BookNotFoundError struct {
	BookID int64
	Title  string
}

func (e *BookNotFoundError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("book %d (%s) no longer exists", e.BookID, e.Title)
	}
	return fmt.Sprintf("book %d no longer exists", e.BookID)
}

// InsufficientStockError names the book that cannot cover the request.
type InsufficientStockError struct {
	BookID    int64
	Title     string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", e.Title, e.Requested, e.Available)
}

// InvalidStateError reports an order status change the lifecycle forbids.
type InvalidStateError struct {
	Status models.OrderStatus
	Target models.OrderStatus
}

func (e *InvalidStateError) Error() string {
	if e.Target == models.StatusCancelled {
		return fmt.Sprintf("can't cancel order with status: %s", e.Status)
	}
	return fmt.Sprintf("can't move order from %s to %s", e.Status, e.Target)
}

// NotFoundError hides whether the resource is missing or owned by someone else.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %d not found", e.Resource, e.ID) }

// TransactionConflictError means nothing was applied and the whole
// operation may be retried from the top.
type TransactionConflictError struct {
	Op  string
	Err error
}

func (e *TransactionConflictError) Error() string {
	return fmt.Sprintf("%s: transaction conflict: %v", e.Op, e.Err)
}

func (e *TransactionConflictError) Unwrap() error { return e.Err }

// UnexpectedError wraps anything the taxonomy does not name.
type UnexpectedError struct {
	Op  string
	Err error
}

func (e *UnexpectedError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *UnexpectedError) Unwrap() error { return e.Err }

// IsRetryable reports whether err came from a conflict that a fresh attempt may avoid.
func IsRetryable(err error) bool {
	var tc *TransactionConflictError
	return errors.As(err, &tc)
}

// classify leaves typed errors alone and sorts store errors into the taxonomy.
func classify(op string, err error) error {
	var (
		ve  *ValidationError
		bnf *BookNotFoundError
		ise *InsufficientStockError
		inv *InvalidStateError
		nf  *NotFoundError
		tc  *TransactionConflictError
		ue  *UnexpectedError
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrEmptyCart),
		errors.As(err, &ve), errors.As(err, &bnf), errors.As(err, &ise),
		errors.As(err, &inv), errors.As(err, &nf), errors.As(err, &tc), errors.As(err, &ue):
		return err
	case store.IsUnavailable(err):
		if !errors.Is(err, store.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		return &TransactionConflictError{Op: op, Err: err}
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrDuplicateOrderNumber):
		return &TransactionConflictError{Op: op, Err: err}
	default:
		return &UnexpectedError{Op: op, Err: err}
	}
}

// reason labels a failure for metrics and logs.
func reason(err error) string {
	var (
		ve  *ValidationError
		bnf *BookNotFoundError
		ise *InsufficientStockError
		inv *InvalidStateError
		nf  *NotFoundError
		tc  *TransactionConflictError
	)
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &bnf):
		return "book_not_found"
	case errors.As(err, &ise):
		return "insufficient_stock"
	case errors.As(err, &inv):
		return "invalid_state"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &tc):
		return "conflict"
	default:
		return "unexpected"
	}
}
