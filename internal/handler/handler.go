// Package handler serves the storefront JSON API: the cart operations the
// views invoke and the read-only catalog queries.
package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/lumiere-storefront/internal/domain/cart"
	"github.com/xenking/lumiere-storefront/internal/domain/product"
	"github.com/xenking/lumiere-storefront/internal/session"
	"github.com/xenking/lumiere-storefront/pkg/httpmiddleware"
)

// DefaultCookieName names the session cookie.
const DefaultCookieName = "lumiere_session"

const maxBodySize = 64 << 10

// Sessions resolves a session key to its cart store.
type Sessions interface {
	Get(ctx context.Context, key string) (*cart.Store, error)
}

var _ Sessions = (*session.Registry)(nil)

// Config holds non-dependency handler settings.
type Config struct {
	CookieName string
	// CookieSecure marks the session cookie Secure (HTTPS only).
	CookieSecure bool
	CookieMaxAge time.Duration
	// FeaturedCollection is the collection handle shown on /api/home.
	FeaturedCollection string
}

// Handler implements the HTTP API.
type Handler struct {
	sessions Sessions
	catalog  product.Catalog
	cfg      Config
}

// New creates a Handler.
func New(cfg Config, sessions Sessions, catalog product.Catalog) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.CookieMaxAge <= 0 {
		cfg.CookieMaxAge = 30 * 24 * time.Hour
	}
	return &Handler{sessions: sessions, catalog: catalog, cfg: cfg}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("POST /api/cart/lines", h.AddLine)
	// Line ids are global ids containing "//", so they travel in the
	// lineId query parameter rather than in the path.
	mux.HandleFunc("PATCH /api/cart/lines", h.UpdateLine)
	mux.HandleFunc("DELETE /api/cart/lines", h.RemoveLine)
	mux.HandleFunc("POST /api/cart/lines/increment", h.IncrementLine)
	mux.HandleFunc("POST /api/cart/lines/decrement", h.DecrementLine)
	mux.HandleFunc("POST /api/cart/discount-codes", h.ApplyDiscountCode)
	mux.HandleFunc("DELETE /api/cart/discount-codes", h.ClearDiscountCodes)
	mux.HandleFunc("POST /api/cart/open", h.OpenCart)
	mux.HandleFunc("POST /api/cart/close", h.CloseCart)

	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{handle}", h.GetProduct)
	mux.HandleFunc("GET /api/collections", h.ListCollections)
	mux.HandleFunc("GET /api/collections/{handle}", h.GetCollection)
	mux.HandleFunc("GET /api/home", h.Home)
}

// store returns the cart store of the request's session, issuing a session
// cookie when the request has none or an invalid one.
func (h *Handler) store(w http.ResponseWriter, r *http.Request) (*cart.Store, error) {
	key := ""
	if c, err := r.Cookie(h.cfg.CookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			key = c.Value
		}
	}
	if key == "" {
		key = session.NewKey()
		http.SetCookie(w, &http.Cookie{
			Name:     h.cfg.CookieName,
			Value:    key,
			Path:     "/",
			MaxAge:   int(h.cfg.CookieMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   h.cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return h.sessions.Get(r.Context(), key)
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string) {
	httpmiddleware.WriteError(w, status, message)
}

// writeStoreError maps a cart.Store error to a response. Failed mutations
// answer with the shopper-facing alert text.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrOperationFailed):
		writeError(w, http.StatusBadGateway, cart.AlertMessage)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		zctx.From(r.Context()).Error("Cart request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeBody reads a JSON object body and hands each field to fn.
func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(body) == 0 {
		return errors.New("empty body")
	}
	return jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		return fn(d, string(key))
	})
}

// pageFromQuery reads the first/after pagination parameters.
func pageFromQuery(r *http.Request) (product.Page, error) {
	q := r.URL.Query()
	page := product.Page{After: q.Get("after")}
	if v := q.Get("first"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return page, errors.Errorf("invalid first %q", v)
		}
		page.First = n
	}
	return page.Normalize(), nil
}
