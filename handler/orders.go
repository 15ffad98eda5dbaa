package handler

import (
	"net/http"

	models "github.com/sagrvma/bookstore/model"
	"github.com/sagrvma/bookstore/service"
)

type placeOrderReq struct {
	ShippingAddress *models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   models.PaymentMethod    `json:"paymentMethod"`
	Notes           string                  `json:"notes"`
}

type updateStatusReq struct {
	Status models.OrderStatus `json:"status"`
}

// PlaceOrder handles POST /api/orders
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderReq
	if err := decode(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	order, err := h.svc.PlaceOrder(r.Context(), userID(r), service.PlaceOrderInput{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Order placed successfully", order)
}

// ListOrders handles GET /api/orders?page=1&limit=10
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ListOrders(r.Context(), userID(r), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", page)
}

// GetOrder handles GET /api/orders/{orderId}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid order id")
		return
	}
	order, err := h.svc.GetOrder(r.Context(), userID(r), orderID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", order)
}

// CancelOrder handles PATCH /api/orders/{orderId}/cancel
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid order id")
		return
	}
	order, err := h.svc.CancelOrder(r.Context(), userID(r), orderID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Order cancelled successfully", order)
}

// ListAllOrders handles GET /api/orders/admin/all?status=pending&page=1&limit=20
func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.svc.ListAllOrders(r.Context(), q.Get("status"), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", page)
}

// UpdateOrderStatus handles PATCH /api/orders/admin/{orderId}/status
// body: { "status": "shipped" }
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req updateStatusReq
	if err := decode(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	order, err := h.svc.UpdateOrderStatus(r.Context(), orderID, req.Status)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Order status updated", order)
}
