package patterns

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/sagrvma/bookstore/metrics"
	models "github.com/sagrvma/bookstore/model"
	"github.com/sagrvma/bookstore/store"
)

// BreakerSettings configures TxBreaker.
type BreakerSettings struct {
	MaxFailures uint32        // consecutive failures before opening
	Interval    time.Duration // window after which closed-state counts reset
	OpenTimeout time.Duration // time spent open before probing again
}

// TxBreaker wraps a Store so that units of work fail fast while the
// database is unreachable. Only outages count as failures: a checkout
// rejected for stock or a lost race leaves the breaker alone.
type TxBreaker struct {
	store.Store
	cb *gobreaker.CircuitBreaker
}

func NewTxBreaker(s store.Store, cfg BreakerSettings) *TxBreaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "database",
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			metrics.TxBreakerState.Set(stateValue(to))
			log.WithFields(log.Fields{
				"circuit": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
	metrics.TxBreakerState.Set(0)
	return &TxBreaker{Store: s, cb: cb}
}

func (b *TxBreaker) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return b.guard(func() error { return b.Store.WithinTx(ctx, fn) })
}

// Single-statement reads the service issues outside a transaction go
// through the same circuit.

func (b *TxBreaker) CreateCart(ctx context.Context, userID string) (c *models.Cart, err error) {
	err = b.guard(func() error {
		c, err = b.Store.CreateCart(ctx, userID)
		return err
	})
	return c, err
}

func (b *TxBreaker) GetBook(ctx context.Context, bookID int64) (bk *models.Book, err error) {
	err = b.guard(func() error {
		bk, err = b.Store.GetBook(ctx, bookID)
		return err
	})
	return bk, err
}

func (b *TxBreaker) GetOrderForUser(ctx context.Context, orderID int64, userID string) (o *models.Order, err error) {
	err = b.guard(func() error {
		o, err = b.Store.GetOrderForUser(ctx, orderID, userID)
		return err
	})
	return o, err
}

func (b *TxBreaker) ListOrders(ctx context.Context, f store.OrderFilter) (out []models.Order, total int, err error) {
	err = b.guard(func() error {
		out, total, err = b.Store.ListOrders(ctx, f)
		return err
	})
	return out, total, err
}

// guard runs call under the breaker. Errors other than outages are handed
// back untouched and count as successes.
func (b *TxBreaker) guard(call func() error) error {
	var passthrough error
	_, err := b.cb.Execute(func() (interface{}, error) {
		err := call()
		if err != nil && !store.IsUnavailable(err) {
			passthrough = err
			return nil, nil
		}
		return nil, err
	})
	if passthrough != nil {
		return passthrough
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}

// State returns the breaker state name.
func (b *TxBreaker) State() string {
	return b.cb.State().String()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
