package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration tracks HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookstore_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// OrdersPlaced counts committed checkouts
	OrdersPlaced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookstore_orders_placed_total",
			Help: "Total number of orders placed",
		},
	)

	// OrdersCancelled counts committed cancellations by who asked for them
	OrdersCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		},
		[]string{"actor"},
	)

	// CheckoutRejections counts checkouts that rolled back, by reason
	CheckoutRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_checkout_rejections_total",
			Help: "Checkouts rolled back, by reason",
		},
		[]string{"reason"},
	)

	// OrderNumberCollisions counts retries caused by a taken order number
	OrderNumberCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookstore_order_number_collisions_total",
			Help: "Order number collisions resolved by retrying",
		},
	)

	// BookStock tracks the last committed stock level per book
	BookStock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bookstore_book_stock",
			Help: "Last committed stock level",
		},
		[]string{"book_id"},
	)

	// TxBreakerState tracks the database breaker (0=closed, 1=open, 2=half-open)
	TxBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookstore_tx_breaker_state",
			Help: "Database circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)
)

// SetBookStock records the stock level of a book after a commit.
func SetBookStock(bookID int64, stock int) {
	BookStock.WithLabelValues(strconv.FormatInt(bookID, 10)).Set(float64(stock))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency per route template.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
