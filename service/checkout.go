package service

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/sagrvma/bookstore/metrics"
	models "github.com/sagrvma/bookstore/model"
	"github.com/sagrvma/bookstore/store"
)

type PlaceOrderInput struct {
	ShippingAddress *models.ShippingAddress
	PaymentMethod   models.PaymentMethod
	Notes           string
}

func (in PlaceOrderInput) validate() error {
	if in.ShippingAddress == nil {
		return invalid("shippingAddress", "is required")
	}
	if missing := in.ShippingAddress.MissingFields(); len(missing) > 0 {
		return invalid("shippingAddress", "is missing %s", strings.Join(missing, ", "))
	}
	if in.PaymentMethod != "" && !in.PaymentMethod.Valid() {
		return invalid("paymentMethod", "must be %q or %q", models.PaymentCashOnDelivery, models.PaymentCard)
	}
	return nil
}

// PlaceOrder turns the user's cart into a pending order. Stock is checked
// and decremented against the book rows locked inside the transaction,
// never against the cart, and the cart's captured prices are charged.
// Either every effect commits or none does.
func (s *Service) PlaceOrder(ctx context.Context, userID string, in PlaceOrderInput) (*models.Order, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	if err := in.validate(); err != nil {
		s.rejected("place", userID, err)
		return nil, err
	}
	method := in.PaymentMethod
	if method == "" {
		method = models.PaymentCashOnDelivery
	}

	var (
		placed *models.Order
		stock  = map[int64]int{}
	)
	err := s.runTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cart, err := tx.GetCartByUser(ctx, userID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && cart.Empty()) {
			return ErrEmptyCart
		}
		if err != nil {
			return err
		}

		order := &models.Order{
			UserID:          userID,
			Items:           make([]models.OrderLine, 0, len(cart.Items)),
			Status:          models.StatusPending,
			PaymentStatus:   models.PaymentPending,
			PaymentMethod:   method,
			ShippingAddress: *in.ShippingAddress,
			Notes:           in.Notes,
		}
		for _, line := range cart.Items {
			book, err := tx.GetBook(ctx, line.BookID)
			if errors.Is(err, store.ErrNotFound) {
				return &BookNotFoundError{BookID: line.BookID, Title: line.Title}
			}
			if err != nil {
				return err
			}
			short := &InsufficientStockError{
				BookID:    book.ID,
				Title:     book.Title,
				Requested: line.Quantity,
				Available: book.Stock,
			}
			if book.Stock < line.Quantity {
				return short
			}
			if err := tx.DecrementStock(ctx, book.ID, line.Quantity); err != nil {
				if errors.Is(err, store.ErrStockRefused) {
					return short
				}
				return err
			}
			stock[book.ID] = book.Stock - line.Quantity

			author := book.Author
			if author == "" {
				author = models.UnknownAuthor
			}
			order.Items = append(order.Items, models.NewOrderLine(book.ID, book.Title, author, line.Price, line.Quantity))
		}
		order.Price()

		if err := s.numbers.Create(ctx, tx, order); err != nil {
			return err
		}
		if err := tx.ClearCart(ctx, userID); err != nil {
			return err
		}
		placed = order
		return nil
	})
	if err != nil {
		err = classify("place order", err)
		s.rejected("place", userID, err)
		return nil, err
	}

	for id, n := range stock {
		metrics.SetBookStock(id, n)
	}
	metrics.OrdersPlaced.Inc()
	s.log.WithFields(log.Fields{
		"user_id":      userID,
		"order_id":     placed.ID,
		"order_number": placed.OrderNumber,
		"items":        len(placed.Items),
		"total":        placed.Total.String(),
	}).Info("Order placed")
	return placed, nil
}

// CancelOrder cancels the user's own pending or confirmed order and puts
// every line's quantity back on the shelf in the same transaction.
func (s *Service) CancelOrder(ctx context.Context, userID string, orderID int64) (*models.Order, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	var (
		cancelled *models.Order
		stock     map[int64]int
	)
	err := s.runTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.GetOrderForUser(ctx, orderID, userID)
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{Resource: "order", ID: orderID}
		}
		if err != nil {
			return err
		}
		if stock, err = s.cancelLocked(ctx, tx, o); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		err = classify("cancel order", err)
		s.rejected("cancel", userID, err)
		return nil, err
	}

	for id, n := range stock {
		metrics.SetBookStock(id, n)
	}
	metrics.OrdersCancelled.WithLabelValues("owner").Inc()
	s.log.WithFields(log.Fields{
		"user_id":      userID,
		"order_id":     cancelled.ID,
		"order_number": cancelled.OrderNumber,
	}).Info("Order cancelled")
	return cancelled, nil
}

// cancelLocked restores stock and marks o cancelled, returning the new stock
// of every restocked book. o must have been read with its row locked by tx.
func (s *Service) cancelLocked(ctx context.Context, tx store.Tx, o *models.Order) (map[int64]int, error) {
	if !o.Status.Cancellable() {
		return nil, &InvalidStateError{Status: o.Status, Target: models.StatusCancelled}
	}
	stock := make(map[int64]int, len(o.Items))
	for _, it := range o.Items {
		err := tx.IncrementStock(ctx, it.BookID, it.Quantity)
		if errors.Is(err, store.ErrNotFound) {
			s.log.WithFields(log.Fields{
				"order_id": o.ID,
				"book_id":  it.BookID,
				"quantity": it.Quantity,
			}).Warn("Book removed from catalog, nothing to restock")
			continue
		}
		if err != nil {
			return nil, err
		}
		b, err := tx.GetBook(ctx, it.BookID)
		if err != nil {
			return nil, err
		}
		stock[b.ID] = b.Stock
	}
	if err := tx.UpdateOrderStatus(ctx, o.ID, models.StatusCancelled); err != nil {
		return nil, err
	}
	o.Status = models.StatusCancelled
	o.UpdatedAt = s.now()
	return stock, nil
}

func (s *Service) rejected(op, userID string, err error) {
	r := reason(err)
	if op == "place" {
		metrics.CheckoutRejections.WithLabelValues(r).Inc()
	}
	entry := s.log.WithFields(log.Fields{"op": op, "user_id": userID, "reason": r})
	if r == "unexpected" {
		entry.WithError(err).Error("Order operation failed")
		return
	}
	entry.WithError(err).Warn("Order operation rejected")
}
