package service

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sagrvma/bookstore/patterns"
	"github.com/sagrvma/bookstore/store"
)

type Service struct {
	store     store.Store
	numbers   *OrderNumberGenerator
	log       log.FieldLogger
	now       func() time.Time
	txTimeout time.Duration
}

type Option func(*Service)

// WithClock replaces time.Now. Order numbers use the clock's location as
// the server-local day.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l log.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

func WithTxTimeout(d time.Duration) Option {
	return func(s *Service) { s.txTimeout = d }
}

func WithOrderNumberAttempts(n int) Option {
	return func(s *Service) { s.numbers.attempts = n }
}

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		numbers:   &OrderNumberGenerator{attempts: defaultOrderNumberAttempts},
		log:       log.StandardLogger(),
		now:       time.Now,
		txTimeout: patterns.DefaultTxTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.numbers.now = s.now
	s.numbers.log = s.log
	return s
}

// runTx runs fn as one unit of work under the transaction timeout.
func (s *Service) runTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	ctx, cancel := patterns.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	return s.store.WithinTx(ctx, fn)
}

// runRead bounds a single-statement read by the same timeout.
func (s *Service) runRead(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := patterns.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	return fn(ctx)
}
