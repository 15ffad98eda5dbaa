package handler

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/sagrvma/bookstore/service"
	"github.com/sagrvma/bookstore/store"
)

// respondErr maps service errors to HTTP codes. Anything the service does
// not name is logged and reported without detail.
func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve  *service.ValidationError
		ise *service.InsufficientStockError
		inv *service.InvalidStateError
		bnf *service.BookNotFoundError
		nf  *service.NotFoundError
		tc  *service.TransactionConflictError
	)
	switch {
	case errors.Is(err, service.ErrEmptyCart):
		writeErr(w, http.StatusBadRequest, "Cart is empty")
	case errors.As(err, &ve), errors.As(err, &ise), errors.As(err, &inv):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &bnf), errors.As(err, &nf):
		writeErr(w, http.StatusNotFound, err.Error())
	case errors.As(err, &tc) && errors.Is(err, store.ErrUnavailable):
		w.Header().Set("Retry-After", "30")
		writeErr(w, http.StatusServiceUnavailable, "service temporarily unavailable, please retry")
	case errors.As(err, &tc):
		w.Header().Set("Retry-After", "1")
		writeErr(w, http.StatusConflict, "request conflicted with another update, please retry")
	default:
		h.requestLog(r).WithFields(log.Fields{"error": err.Error()}).Error("Request failed")
		writeErr(w, http.StatusInternalServerError, "internal server error")
	}
}
