package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sagrvma/bookstore/metrics"
	models "github.com/sagrvma/bookstore/model"
	"github.com/sagrvma/bookstore/store"
)

const defaultOrderNumberAttempts = 5

// FormatOrderNumber renders ORD-YYYYMMDD-NNN.
func FormatOrderNumber(day time.Time, seq int) string {
	return fmt.Sprintf("ORD-%s-%03d", day.Format("20060102"), seq)
}

// DayBounds returns the first and last instant of t's calendar day in t's location.
func DayBounds(t time.Time) (start, end time.Time) {
	y, m, d := t.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	end = start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// OrderNumberGenerator numbers orders per calendar day. The count only
// proposes a number; the unique index on order_number decides, and a
// collision triggers a recount.
type OrderNumberGenerator struct {
	attempts int
	now      func() time.Time
	log      log.FieldLogger
}

// Create stamps o with a creation time and a free order number and persists it.
func (g *OrderNumberGenerator) Create(ctx context.Context, orders store.OrderStore, o *models.Order) error {
	now := g.now()
	start, end := DayBounds(now)
	o.CreatedAt = now
	o.UpdatedAt = now

	last := 0
	for attempt := 1; attempt <= g.attempts; attempt++ {
		n, err := orders.CountOrdersCreatedBetween(ctx, start, end)
		if err != nil {
			return err
		}
		seq := n + 1
		if seq <= last {
			seq = last + 1
		}
		o.OrderNumber = FormatOrderNumber(now, seq)

		err = orders.CreateOrder(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrDuplicateOrderNumber) {
			return err
		}
		metrics.OrderNumberCollisions.Inc()
		g.log.WithFields(log.Fields{
			"order_number": o.OrderNumber,
			"attempt":      attempt,
		}).Warn("Order number taken, recounting")
		last = seq
	}
	return &TransactionConflictError{
		Op:  "assign order number",
		Err: fmt.Errorf("%w after %d attempts", store.ErrDuplicateOrderNumber, g.attempts),
	}
}
