// Package cart implements the shopper's cart: the snapshot model served by the
// commerce backend and the Store that keeps one shopper's cart in sync with it.
package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/lumiere-storefront/internal/domain/money"
	"github.com/xenking/lumiere-storefront/internal/domain/product"
)

var (
	// ErrNotFound is returned by Backend.GetCart when the identifier does not
	// resolve to a live cart (unknown, expired or malformed).
	ErrNotFound = errors.New("cart not found")
	// ErrOperationFailed wraps every failed cart mutation. Callers are not
	// expected to distinguish causes.
	ErrOperationFailed = errors.New("cart operation failed")
)

// AlertMessage is the generic text shown to the shopper when a cart
// operation fails.
const AlertMessage = "Something went wrong. Please try again later."

// ProductRef is the parent product's display metadata of a line.
type ProductRef struct {
	Title  string
	Handle string
	Image  product.Image
}

// Merchandise is the purchased variant of a line.
type Merchandise struct {
	VariantID string
	Title     string
	Price     money.Money
	Product   ProductRef
}

// Line is one entry of a cart. Its ID is issued by the backend and differs
// from the variant ID. Quantity is always at least 1.
type Line struct {
	ID          string
	Quantity    int
	Merchandise Merchandise
	Cost        money.Money
}

// Cost holds the cart totals.
type Cost struct {
	Subtotal money.Money
	Discount money.Money
	Total    money.Money
}

// DiscountCode is a code entered on the cart and whether it currently applies.
type DiscountCode struct {
	Code       string
	Applicable bool
}

// Cart is an immutable snapshot of the remote cart. Backends return a fresh
// value on every call and never modify one they have handed out.
type Cart struct {
	ID            string
	CheckoutURL   string
	Lines         []Line
	Cost          Cost
	DiscountCodes []DiscountCode
	// TotalQuantity is the backend-reported quantity; ItemCount is derived
	// from the lines and is what the views display.
	TotalQuantity int
}

// ItemCount returns the sum of all line quantities. A nil cart counts zero.
func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Line returns the line with the given ID.
func (c *Cart) Line(id string) (Line, bool) {
	if c == nil {
		return Line{}, false
	}
	for _, l := range c.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return Line{}, false
}

// LineForVariant returns the first line holding the given variant.
func (c *Cart) LineForVariant(variantID string) (Line, bool) {
	if c == nil {
		return Line{}, false
	}
	for _, l := range c.Lines {
		if l.Merchandise.VariantID == variantID {
			return l, true
		}
	}
	return Line{}, false
}

// IsEmpty reports whether the cart holds no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// Backend is the remote commerce cart surface.
type Backend interface {
	CreateCart(ctx context.Context) (*Cart, error)
	// GetCart returns ErrNotFound when id does not resolve to a live cart.
	GetCart(ctx context.Context, id string) (*Cart, error)
	AddLine(ctx context.Context, cartID, variantID string, quantity int) (*Cart, error)
	UpdateLine(ctx context.Context, cartID, lineID string, quantity int) (*Cart, error)
	RemoveLine(ctx context.Context, cartID, lineID string) (*Cart, error)
	UpdateDiscountCodes(ctx context.Context, cartID string, codes []string) (*Cart, error)
}

// IDStore is the persistent slot holding the active cart identifier of one
// storage context.
type IDStore interface {
	// Load returns the stored identifier, or "" when the slot is empty.
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// Alerter delivers a blocking, user-visible message.
type Alerter interface {
	Alert(ctx context.Context, message string)
}

// AlerterFunc adapts a function to Alerter.
type AlerterFunc func(ctx context.Context, message string)

// Alert calls f(ctx, message).
func (f AlerterFunc) Alert(ctx context.Context, message string) {
	f(ctx, message)
}
