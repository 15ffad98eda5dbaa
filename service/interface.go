package service

import (
	"context"

	models "github.com/sagrvma/bookstore/model"
)

type ServiceInterface interface {
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
	AddToCart(ctx context.Context, userID string, bookID int64, qty int) (*models.Cart, error)
	UpdateCartItem(ctx context.Context, userID string, bookID int64, qty int) (*models.Cart, error)
	RemoveFromCart(ctx context.Context, userID string, bookID int64) (*models.Cart, error)
	ClearCart(ctx context.Context, userID string) (*models.Cart, error)

	PlaceOrder(ctx context.Context, userID string, in PlaceOrderInput) (*models.Order, error)
	CancelOrder(ctx context.Context, userID string, orderID int64) (*models.Order, error)
	GetOrder(ctx context.Context, userID string, orderID int64) (*models.Order, error)
	ListOrders(ctx context.Context, userID string, page, limit int) (*OrderPage, error)

	ListAllOrders(ctx context.Context, status string, page, limit int) (*OrderPage, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.Order, error)
}

var _ ServiceInterface = (*Service)(nil)
