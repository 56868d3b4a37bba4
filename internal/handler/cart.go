package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/lumiere-storefront/internal/domain/cart"
)

// respond runs op against the session store and answers with the resulting
// state.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, op func(s *cart.Store) error) {
	s, err := h.store(w, r)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if op != nil {
		if err := op(s); err != nil {
			writeStoreError(w, r, err)
			return
		}
	}
	st := s.State()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeState(e, st) })
}

// GetCart returns the session's cart state.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, nil)
}

// AddLine handles {"variantId": "...", "quantity": n}. Quantity defaults to 1.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	var (
		variantID string
		quantity  = 1
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "variantId":
			variantID, err = d.Str()
		case "quantity":
			quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if variantID == "" {
		writeError(w, http.StatusBadRequest, "variantId is required")
		return
	}
	if quantity < 1 {
		writeError(w, http.StatusUnprocessableEntity, "quantity must be at least 1")
		return
	}
	h.respond(w, r, func(s *cart.Store) error {
		return s.AddToCart(r.Context(), variantID, quantity)
	})
}

// lineParam is the query parameter naming the target cart line.
const lineParam = "lineId"

// lineFromQuery returns the lineId query parameter, answering 400 when it is
// missing.
func lineFromQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get(lineParam)
	if id == "" {
		writeError(w, http.StatusBadRequest, "lineId is required")
		return "", false
	}
	return id, true
}

// UpdateLine handles ?lineId=... with {"quantity": n}. Zero removes the line.
func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	lineID, ok := lineFromQuery(w, r)
	if !ok {
		return
	}
	quantity := -1
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		n, err := d.Int()
		if err != nil {
			return errors.Wrap(err, "quantity")
		}
		quantity = n
		return nil
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if quantity < 0 {
		writeError(w, http.StatusUnprocessableEntity, "quantity must be zero or more")
		return
	}
	h.respond(w, r, func(s *cart.Store) error {
		return s.UpdateQuantity(r.Context(), lineID, quantity)
	})
}

// RemoveLine deletes a line.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	lineID, ok := lineFromQuery(w, r)
	if !ok {
		return
	}
	h.respond(w, r, func(s *cart.Store) error {
		return s.RemoveItem(r.Context(), lineID)
	})
}

// IncrementLine is the "+" stepper.
func (h *Handler) IncrementLine(w http.ResponseWriter, r *http.Request) {
	lineID, ok := lineFromQuery(w, r)
	if !ok {
		return
	}
	h.respond(w, r, func(s *cart.Store) error {
		return s.Increment(r.Context(), lineID)
	})
}

// DecrementLine is the "-" stepper; at quantity 1 it removes the line.
func (h *Handler) DecrementLine(w http.ResponseWriter, r *http.Request) {
	lineID, ok := lineFromQuery(w, r)
	if !ok {
		return
	}
	h.respond(w, r, func(s *cart.Store) error {
		return s.Decrement(r.Context(), lineID)
	})
}

// ApplyDiscountCode handles {"code": "..."}.
func (h *Handler) ApplyDiscountCode(w http.ResponseWriter, r *http.Request) {
	var code string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "code" {
			return d.Skip()
		}
		var err error
		code, err = d.Str()
		return err
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	h.respond(w, r, func(s *cart.Store) error {
		return s.ApplyDiscountCode(r.Context(), code)
	})
}

// ClearDiscountCodes removes all discount codes.
func (h *Handler) ClearDiscountCodes(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(s *cart.Store) error {
		return s.ClearDiscountCodes(r.Context())
	})
}

// OpenCart shows the drawer.
func (h *Handler) OpenCart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(s *cart.Store) error {
		s.OpenCart()
		return nil
	})
}

// CloseCart hides the drawer.
func (h *Handler) CloseCart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(s *cart.Store) error {
		s.CloseCart()
		return nil
	})
}
