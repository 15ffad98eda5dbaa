package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/sagrvma/bookstore/metrics"
	"github.com/sagrvma/bookstore/service"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"
	HeaderRequestID = "X-Request-ID"

	roleAdmin = "admin"

	maxBodyBytes = 1 << 20
)

type ctxKey int

const (
	userKey ctxKey = iota
	requestIDKey
)

// Handler is the HTTP layer that talks to service.Service
type Handler struct {
	svc service.ServiceInterface
	log log.FieldLogger
}

// NewHandler returns a Handler instance
func NewHandler(s service.ServiceInterface, l log.FieldLogger) *Handler {
	if l == nil {
		l = log.StandardLogger()
	}
	return &Handler{svc: s, log: l}
}

// Router builds the full route table with its middleware.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.requestID, h.logRequests, metrics.Middleware)
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.authenticate)

	// Cart
	cart := api.PathPrefix("/cart").Subrouter()
	cart.HandleFunc("", h.GetCart).Methods(http.MethodGet)
	cart.HandleFunc("", h.AddToCart).Methods(http.MethodPost)
	cart.HandleFunc("", h.ClearCart).Methods(http.MethodDelete)
	cart.HandleFunc("/items/{bookId:[0-9]+}", h.UpdateCartItem).Methods(http.MethodPatch)
	cart.HandleFunc("/items/{bookId:[0-9]+}", h.RemoveFromCart).Methods(http.MethodDelete)

	// Orders
	orders := api.PathPrefix("/orders").Subrouter()
	orders.HandleFunc("", h.PlaceOrder).Methods(http.MethodPost)
	orders.HandleFunc("", h.ListOrders).Methods(http.MethodGet)
	orders.HandleFunc("/{orderId:[0-9]+}", h.GetOrder).Methods(http.MethodGet)
	orders.HandleFunc("/{orderId:[0-9]+}/cancel", h.CancelOrder).Methods(http.MethodPatch)

	// Admin
	admin := orders.PathPrefix("/admin").Subrouter()
	admin.Use(h.requireAdmin)
	admin.HandleFunc("/all", h.ListAllOrders).Methods(http.MethodGet)
	admin.HandleFunc("/{orderId:[0-9]+}/status", h.UpdateOrderStatus).Methods(http.MethodPatch)
}

// --- response envelope ---

type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, code int, msg string, data interface{}) {
	writeJSON(w, code, envelope{Success: true, Message: msg, Data: data})
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, envelope{Success: false, Message: msg})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "ok", map[string]string{"time": time.Now().UTC().Format(time.RFC3339)})
}

// --- middleware ---

func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		h.requestLog(r).WithFields(log.Fields{
			"status":   sw.status,
			"duration": time.Since(start).String(),
		}).Debug("Request served")
	})
}

// authenticate trusts the user id set by the gateway in front of us.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderUserID)
		if userID == "" {
			writeErr(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, userID)))
	})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderUserRole) != roleAdmin {
			writeErr(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userKey).(string)
	return id
}

func (h *Handler) requestLog(r *http.Request) log.FieldLogger {
	fields := log.Fields{"method": r.Method, "path": r.URL.Path}
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		fields["request_id"] = id
	}
	if u := userID(r); u != "" {
		fields["user_id"] = u
	}
	return h.log.WithFields(fields)
}

// --- request helpers ---

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return id, err == nil && id > 0
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
