package product

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/lumiere-storefront/internal/domain/money"
)

// ErrNotFound is returned when a requested product or collection handle does
// not resolve.
var ErrNotFound = errors.New("product not found")

const (
	// DefaultPageSize is used when a Page does not specify First.
	DefaultPageSize = 12
	// MaxPageSize is the largest page the commerce API serves.
	MaxPageSize = 100
)

// Image is a remote image with its accessibility text.
type Image struct {
	URL     string
	AltText string
}

// Variant is a purchasable configuration of a product (frame colour, lens
// tint) with its own price and availability.
type Variant struct {
	ID               string
	Title            string
	AvailableForSale bool
	Price            money.Money
}

// PriceRange spans the cheapest and the most expensive variant.
type PriceRange struct {
	Min money.Money
	Max money.Money
}

// Product is a catalog item as served by the commerce API.
type Product struct {
	ID          string
	Title       string
	Handle      string
	Description string
	Image       Image
	PriceRange  PriceRange
	Variants    []Variant
}

// Variant returns the variant with the given ID.
func (p *Product) Variant(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// Page selects a window of a cursor-paginated listing.
type Page struct {
	First int
	After string
}

// Normalize clamps First into [1, MaxPageSize], defaulting to DefaultPageSize.
func (p Page) Normalize() Page {
	switch {
	case p.First <= 0:
		p.First = DefaultPageSize
	case p.First > MaxPageSize:
		p.First = MaxPageSize
	}
	return p
}

// PageInfo describes where a listing window ends.
type PageInfo struct {
	HasNextPage bool
	EndCursor   string
}

// List is one page of products.
type List struct {
	Products []Product
	PageInfo PageInfo
}

// Collection is a curated group of products, e.g. "Sun" or "Optical".
type Collection struct {
	ID          string
	Title       string
	Handle      string
	Description string
	Image       Image
	Products    []Product
	PageInfo    PageInfo
}

// CollectionList is one page of collections. Collections in a listing carry
// no products.
type CollectionList struct {
	Collections []Collection
	PageInfo    PageInfo
}

// Catalog defines the read-only product and collection queries consumed by
// the storefront views.
type Catalog interface {
	ListProducts(ctx context.Context, page Page) (*List, error)
	GetProduct(ctx context.Context, handle string) (*Product, error)
	ListCollections(ctx context.Context, page Page) (*CollectionList, error)
	GetCollection(ctx context.Context, handle string, page Page) (*Collection, error)
}
