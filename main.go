package main

// GET    /health                              - liveness
// GET    /metrics                             - prometheus
// GET    /api/cart                            - current cart
// POST   /api/cart                            - add a book
// DELETE /api/cart                            - empty the cart
// PATCH  /api/cart/items/{bookId}             - change quantity
// DELETE /api/cart/items/{bookId}             - remove a book
// POST   /api/orders                          - checkout
// GET    /api/orders                          - my orders
// GET    /api/orders/{orderId}                - one of my orders
// PATCH  /api/orders/{orderId}/cancel         - cancel and restock
// GET    /api/orders/admin/all                - every order (admin)
// PATCH  /api/orders/admin/{orderId}/status   - move an order along (admin)

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/sagrvma/bookstore/config"
	"github.com/sagrvma/bookstore/handler"
	"github.com/sagrvma/bookstore/patterns"
	"github.com/sagrvma/bookstore/service"
	"github.com/sagrvma/bookstore/store"
)

//go:embed migrations.sql
var migrationSQL string

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}

func main() {
	cfg, err := config.Load(os.Getenv("BOOKSTORE_CONFIG"))
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to open store")
	}
	defer st.Close()

	guarded := patterns.NewTxBreaker(st, cfg.BreakerSettings())
	svc := service.NewService(guarded,
		service.WithTxTimeout(cfg.TxTimeout),
		service.WithOrderNumberAttempts(cfg.OrderNumberAttempts),
	)
	h := handler.NewHandler(svc, log.StandardLogger())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: h.Router()}
	go func() {
		log.WithFields(log.Fields{"addr": cfg.HTTPAddr, "store": cfg.Store}).Info("Bookstore service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server error")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.Store == config.DriverMemory {
		books := cfg.Books()
		log.WithField("books", len(books)).Warn("Using in-memory store, nothing survives a restart")
		return store.NewMemoryStore(books...), nil
	}

	pg, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx, migrationSQL); err != nil {
		_ = pg.Close()
		return nil, err
	}
	log.Info("Database migrations executed successfully")
	return pg, nil
}
