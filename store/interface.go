package store

import (
	"context"
	"time"

	models "github.com/sagrvma/bookstore/model"
)

// CartStore persists per-user carts.
type CartStore interface {
	// GetCartByUser returns ErrNotFound when the user has no cart yet.
	GetCartByUser(ctx context.Context, userID string) (*models.Cart, error)
	// CreateCart returns the user's cart, creating an empty one if needed.
	CreateCart(ctx context.Context, userID string) (*models.Cart, error)
	// PutCartLine inserts the line or overwrites the existing line for the same book.
	PutCartLine(ctx context.Context, cartID int64, line models.CartLine) error
	DeleteCartLine(ctx context.Context, cartID, bookID int64) error
	ClearCart(ctx context.Context, userID string) error
}

// BookStore exposes the stock field of the catalog.
type BookStore interface {
	GetBook(ctx context.Context, bookID int64) (*models.Book, error)
	// DecrementStock returns ErrStockRefused if fewer than qty copies remain.
	DecrementStock(ctx context.Context, bookID int64, qty int) error
	IncrementStock(ctx context.Context, bookID int64, qty int) error
}

// OrderStore persists orders. Lines are written once, with the order.
type OrderStore interface {
	// CreateOrder fills in ID and returns ErrDuplicateOrderNumber when the
	// number is taken; the enclosing transaction stays usable in that case.
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	GetOrderForUser(ctx context.Context, orderID int64, userID string) (*models.Order, error)
	// CountOrdersCreatedBetween counts orders with start <= created_at <= end.
	CountOrdersCreatedBetween(ctx context.Context, start, end time.Time) (int, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int, error)
}

// OrderFilter selects a page of orders, newest first. Empty fields match all.
type OrderFilter struct {
	UserID string
	Status models.OrderStatus
	Limit  int
	Offset int
}

// Tx is one unit of work. Reads inside it lock the rows they return until
// the transaction ends.
type Tx interface {
	CartStore
	BookStore
	OrderStore
}

// Store runs units of work. Calling the embedded Tx methods directly runs
// each statement on its own.
type Store interface {
	Tx
	// WithinTx commits if fn returns nil and rolls back otherwise. The
	// transaction is released on every path, including panics.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}
