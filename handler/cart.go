package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	models "github.com/sagrvma/bookstore/model"
)

type cartLineResp struct {
	models.CartLine
	Subtotal decimal.Decimal `json:"subtotal"`
}

// cartResp adds the derived totals the storefront shows next to the lines.
type cartResp struct {
	*models.Cart
	Items         []cartLineResp  `json:"items"`
	TotalQuantity int             `json:"totalQuantity"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
}

func cartView(c *models.Cart) cartResp {
	items := make([]cartLineResp, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, cartLineResp{CartLine: it, Subtotal: it.Subtotal()})
	}
	return cartResp{Cart: c, Items: items, TotalQuantity: c.TotalQuantity(), TotalPrice: c.TotalPrice()}
}

type cartItemReq struct {
	BookID   int64 `json:"bookId"`
	Quantity int   `json:"quantity"`
}

type cartQuantityReq struct {
	Quantity int `json:"quantity"`
}

// GetCart handles GET /api/cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.svc.GetCart(r.Context(), userID(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", cartView(cart))
}

// AddToCart handles POST /api/cart
// body: { "bookId": 1, "quantity": 2 }
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if err := decode(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.BookID <= 0 {
		writeErr(w, http.StatusBadRequest, "bookId is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	cart, err := h.svc.AddToCart(r.Context(), userID(r), req.BookID, req.Quantity)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Item added to cart", cartView(cart))
}

// UpdateCartItem handles PATCH /api/cart/items/{bookId}
// body: { "quantity": 3 }
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(r, "bookId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid book id")
		return
	}
	var req cartQuantityReq
	if err := decode(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	cart, err := h.svc.UpdateCartItem(r.Context(), userID(r), bookID, req.Quantity)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Cart item updated", cartView(cart))
}

// RemoveFromCart handles DELETE /api/cart/items/{bookId}
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(r, "bookId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid book id")
		return
	}
	cart, err := h.svc.RemoveFromCart(r.Context(), userID(r), bookID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Item removed from cart", cartView(cart))
}

// ClearCart handles DELETE /api/cart
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.svc.ClearCart(r.Context(), userID(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Cart cleared", cartView(cart))
}
