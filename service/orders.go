package service

import (
	"context"
	"errors"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/sagrvma/bookstore/metrics"
	models "github.com/sagrvma/bookstore/model"
	"github.com/sagrvma/bookstore/store"
)

const (
	defaultUserPageSize  = 10
	defaultAdminPageSize = 20
	maxPageSize          = 100
)

type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalOrders int  `json:"totalOrders"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

type OrderPage struct {
	Orders     []models.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

func pageWindow(page, limit, fallback int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = fallback
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	// keeps (page-1)*limit from overflowing
	if last := math.MaxInt / limit; page > last {
		page = last
	}
	return page, limit
}

func newOrderPage(orders []models.Order, total, page, limit int) *OrderPage {
	pages := (total + limit - 1) / limit
	if orders == nil {
		orders = []models.Order{}
	}
	return &OrderPage{
		Orders: orders,
		Pagination: Pagination{
			CurrentPage: page,
			TotalPages:  pages,
			TotalOrders: total,
			HasNext:     page < pages,
			HasPrev:     page > 1,
		},
	}
}

// ListOrders pages through the user's own orders, newest first.
func (s *Service) ListOrders(ctx context.Context, userID string, page, limit int) (*OrderPage, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	page, limit = pageWindow(page, limit, defaultUserPageSize)
	var (
		orders []models.Order
		total  int
	)
	err := s.runRead(ctx, func(ctx context.Context) (err error) {
		orders, total, err = s.store.ListOrders(ctx, store.OrderFilter{
			UserID: userID,
			Limit:  limit,
			Offset: (page - 1) * limit,
		})
		return err
	})
	if err != nil {
		return nil, classify("list orders", err)
	}
	return newOrderPage(orders, total, page, limit), nil
}

// GetOrder returns one of the user's orders. Someone else's order reads as missing.
func (s *Service) GetOrder(ctx context.Context, userID string, orderID int64) (*models.Order, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	var o *models.Order
	err := s.runRead(ctx, func(ctx context.Context) (err error) {
		o, err = s.store.GetOrderForUser(ctx, orderID, userID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Resource: "order", ID: orderID}
	}
	if err != nil {
		return nil, classify("get order", err)
	}
	return o, nil
}

// ListAllOrders is the admin view across users. An unrecognised status
// filter is ignored rather than rejected.
func (s *Service) ListAllOrders(ctx context.Context, status string, page, limit int) (*OrderPage, error) {
	page, limit = pageWindow(page, limit, defaultAdminPageSize)
	f := store.OrderFilter{Limit: limit, Offset: (page - 1) * limit}
	if st, err := models.ParseOrderStatus(status); err == nil {
		f.Status = st
	}
	var (
		orders []models.Order
		total  int
	)
	err := s.runRead(ctx, func(ctx context.Context) (err error) {
		orders, total, err = s.store.ListOrders(ctx, f)
		return err
	})
	if err != nil {
		return nil, classify("list all orders", err)
	}
	return newOrderPage(orders, total, page, limit), nil
}

// UpdateOrderStatus moves an order along its lifecycle on an admin's
// behalf. Moving to cancelled restores stock exactly as the owner's
// cancel does; setting the current status again changes nothing.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.Order, error) {
	target, err := models.ParseOrderStatus(string(status))
	if err != nil {
		return nil, invalid("status", "must be one of %v", models.AllStatuses)
	}

	var (
		updated *models.Order
		changed bool
		stock   map[int64]int
	)
	err = s.runTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.GetOrder(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{Resource: "order", ID: orderID}
		}
		if err != nil {
			return err
		}
		updated = o
		switch {
		case o.Status == target:
			return nil
		case target == models.StatusCancelled:
			if stock, err = s.cancelLocked(ctx, tx, o); err != nil {
				return err
			}
		case !o.Status.CanTransitionTo(target):
			return &InvalidStateError{Status: o.Status, Target: target}
		default:
			if err := tx.UpdateOrderStatus(ctx, o.ID, target); err != nil {
				return err
			}
			o.Status = target
			o.UpdatedAt = s.now()
		}
		changed = true
		return nil
	})
	if err != nil {
		err = classify("update order status", err)
		s.rejected("update_status", "", err)
		return nil, err
	}

	if changed {
		if target == models.StatusCancelled {
			for id, n := range stock {
				metrics.SetBookStock(id, n)
			}
			metrics.OrdersCancelled.WithLabelValues("admin").Inc()
		}
		s.log.WithFields(log.Fields{
			"order_id":     updated.ID,
			"order_number": updated.OrderNumber,
			"status":       updated.Status,
		}).Info("Order status updated")
	}
	return updated, nil
}
