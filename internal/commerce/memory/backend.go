// Package memory implements an in-process commerce backend: the cart
// mutations and catalog queries of the storefront API over a seeded catalog.
// It backs local runs and tests.
package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/lumiere-storefront/internal/domain/cart"
	"github.com/xenking/lumiere-storefront/internal/domain/money"
	"github.com/xenking/lumiere-storefront/internal/domain/product"
)

var (
	_ cart.Backend    = (*Backend)(nil)
	_ product.Catalog = (*Backend)(nil)
)

// Sentinel errors for rejected cart mutations.
var (
	ErrUnknownVariant  = errors.New("variant not found")
	ErrUnknownLine     = errors.New("line not found")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Config seeds a Backend. Empty slices select the built-in eyewear catalog.
type Config struct {
	// CheckoutBaseURL prefixes the checkout URL handed out with each cart.
	CheckoutBaseURL string
	Products        []product.Product
	Collections     []CollectionSeed
	Discounts       []DiscountRule
}

type variantRef struct {
	product *product.Product
	variant product.Variant
}

type lineState struct {
	id        string
	variantID string
	quantity  int
}

type cartState struct {
	id    string
	lines []lineState
	codes []string
}

// Backend is an in-memory commerce backend. It is safe for concurrent use.
type Backend struct {
	checkoutBaseURL string
	products        []product.Product
	byHandle        map[string]*product.Product
	variants        map[string]variantRef
	collections     []CollectionSeed
	discounts       map[string]DiscountRule

	mu    sync.Mutex
	carts map[string]*cartState
}

// New creates a Backend from cfg.
func New(cfg Config) *Backend {
	if len(cfg.Products) == 0 {
		cfg.Products = SeedProducts()
	}
	if len(cfg.Collections) == 0 {
		cfg.Collections = SeedCollections()
	}
	if len(cfg.Discounts) == 0 {
		cfg.Discounts = SeedDiscounts()
	}
	if cfg.CheckoutBaseURL == "" {
		cfg.CheckoutBaseURL = "https://checkout.lumiere.example/cart/"
	}

	b := &Backend{
		checkoutBaseURL: cfg.CheckoutBaseURL,
		products:        cfg.Products,
		byHandle:        make(map[string]*product.Product, len(cfg.Products)),
		variants:        make(map[string]variantRef),
		collections:     cfg.Collections,
		discounts:       make(map[string]DiscountRule, len(cfg.Discounts)),
		carts:           make(map[string]*cartState),
	}
	for i := range b.products {
		p := &b.products[i]
		b.byHandle[p.Handle] = p
		for _, v := range p.Variants {
			b.variants[v.ID] = variantRef{product: p, variant: v}
		}
	}
	for _, d := range cfg.Discounts {
		b.discounts[strings.ToUpper(d.Code)] = d
	}
	return b
}

// CreateCart creates an empty cart.
func (b *Backend) CreateCart(ctx context.Context) (*cart.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	cs := &cartState{id: "gid://shopify/Cart/" + uuid.NewString()}
	b.carts[cs.id] = cs
	return b.snapshot(cs), nil
}

// GetCart returns the cart with the given ID or cart.ErrNotFound.
func (b *Backend) GetCart(ctx context.Context, id string) (*cart.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	cs, ok := b.carts[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return b.snapshot(cs), nil
}

// AddLine adds quantity units of a variant. A variant already in the cart is
// merged into its existing line.
func (b *Backend) AddLine(ctx context.Context, cartID, variantID string, quantity int) (*cart.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	cs, ok := b.carts[cartID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	if _, ok := b.variants[variantID]; !ok {
		return nil, errors.Wrapf(ErrUnknownVariant, "add %q", variantID)
	}

	for i := range cs.lines {
		if cs.lines[i].variantID == variantID {
			cs.lines[i].quantity += quantity
			return b.snapshot(cs), nil
		}
	}
	cs.lines = append(cs.lines, lineState{
		id:        "gid://shopify/CartLine/" + uuid.NewString(),
		variantID: variantID,
		quantity:  quantity,
	})
	return b.snapshot(cs), nil
}

// UpdateLine sets a line's quantity. Zero removes the line.
func (b *Backend) UpdateLine(ctx context.Context, cartID, lineID string, quantity int) (*cart.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	cs, ok := b.carts[cartID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	idx := cs.lineIndex(lineID)
	if idx < 0 {
		return nil, errors.Wrapf(ErrUnknownLine, "update %q", lineID)
	}
	if quantity == 0 {
		cs.lines = append(cs.lines[:idx], cs.lines[idx+1:]...)
	} else {
		cs.lines[idx].quantity = quantity
	}
	return b.snapshot(cs), nil
}

// RemoveLine deletes a line.
func (b *Backend) RemoveLine(ctx context.Context, cartID, lineID string) (*cart.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	cs, ok := b.carts[cartID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	idx := cs.lineIndex(lineID)
	if idx < 0 {
		return nil, errors.Wrapf(ErrUnknownLine, "remove %q", lineID)
	}
	cs.lines = append(cs.lines[:idx], cs.lines[idx+1:]...)
	return b.snapshot(cs), nil
}

// UpdateDiscountCodes replaces the cart's discount codes. Unknown codes are
// kept and reported as not applicable.
func (b *Backend) UpdateDiscountCodes(ctx context.Context, cartID string, codes []string) (*cart.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	cs, ok := b.carts[cartID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	cs.codes = append([]string(nil), codes...)
	return b.snapshot(cs), nil
}

// Expire forgets a cart, as the platform does once a cart ages out.
func (b *Backend) Expire(cartID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.carts, cartID)
}

// Carts returns the number of live carts.
func (b *Backend) Carts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.carts)
}

func (cs *cartState) lineIndex(id string) int {
	for i, l := range cs.lines {
		if l.id == id {
			return i
		}
	}
	return -1
}

// snapshot renders a fresh immutable cart. Must hold b.mu.
func (b *Backend) snapshot(cs *cartState) *cart.Cart {
	c := &cart.Cart{
		ID:          cs.id,
		CheckoutURL: b.checkoutBaseURL + strings.TrimPrefix(cs.id, "gid://shopify/Cart/"),
		Lines:       make([]cart.Line, 0, len(cs.lines)),
	}

	items := make([]pricedItem, 0, len(cs.lines))
	subtotal := decimal.Zero
	for _, l := range cs.lines {
		ref := b.variants[l.variantID]
		line := cart.Line{
			ID:       l.id,
			Quantity: l.quantity,
			Merchandise: cart.Merchandise{
				VariantID: l.variantID,
				Title:     ref.variant.Title,
				Price:     ref.variant.Price,
				Product: cart.ProductRef{
					Title:  ref.product.Title,
					Handle: ref.product.Handle,
					Image:  ref.product.Image,
				},
			},
			Cost: ref.variant.Price.Mul(l.quantity),
		}
		c.Lines = append(c.Lines, line)
		c.TotalQuantity += l.quantity
		subtotal = subtotal.Add(line.Cost.Amount)
		items = append(items, pricedItem{price: ref.variant.Price.Amount, quantity: l.quantity})
	}

	discount, applicable := discountTotal(b.discounts, cs.codes, items)
	for i, code := range cs.codes {
		c.DiscountCodes = append(c.DiscountCodes, cart.DiscountCode{Code: code, Applicable: applicable[i]})
	}

	c.Cost = cart.Cost{
		Subtotal: money.New(subtotal, seedCurrency),
		Discount: money.New(discount, seedCurrency),
		Total:    money.New(subtotal.Sub(discount), seedCurrency),
	}
	return c
}

// ListProducts returns a page of the catalog in seed order. Cursors are
// opaque offsets.
func (b *Backend) ListProducts(ctx context.Context, page product.Page) (*product.List, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	products, info, err := paginate(b.products, page)
	if err != nil {
		return nil, err
	}
	return &product.List{Products: products, PageInfo: info}, nil
}

// GetProduct returns the product with the given handle.
func (b *Backend) GetProduct(ctx context.Context, handle string) (*product.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := b.byHandle[handle]
	if !ok {
		return nil, product.ErrNotFound
	}
	out := *p
	return &out, nil
}

// ListCollections returns a page of collections without their products.
func (b *Backend) ListCollections(ctx context.Context, page product.Page) (*product.CollectionList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seeds, info, err := paginate(b.collections, page)
	if err != nil {
		return nil, err
	}
	out := &product.CollectionList{PageInfo: info}
	for _, s := range seeds {
		out.Collections = append(out.Collections, b.collection(s))
	}
	return out, nil
}

// GetCollection returns a collection with one page of its products.
func (b *Backend) GetCollection(ctx context.Context, handle string, page product.Page) (*product.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, s := range b.collections {
		if s.Handle != handle {
			continue
		}
		members := make([]product.Product, 0, len(s.Products))
		for _, h := range s.Products {
			if p, ok := b.byHandle[h]; ok {
				members = append(members, *p)
			}
		}
		products, info, err := paginate(members, page)
		if err != nil {
			return nil, err
		}
		c := b.collection(s)
		c.Products = products
		c.PageInfo = info
		return &c, nil
	}
	return nil, product.ErrNotFound
}

func (b *Backend) collection(s CollectionSeed) product.Collection {
	c := product.Collection{
		ID:          "gid://shopify/Collection/" + s.Handle,
		Title:       s.Title,
		Handle:      s.Handle,
		Description: s.Description,
	}
	if len(s.Products) > 0 {
		if p, ok := b.byHandle[s.Products[0]]; ok {
			c.Image = p.Image
		}
	}
	return c
}

func paginate[T any](items []T, page product.Page) ([]T, product.PageInfo, error) {
	page = page.Normalize()
	start := 0
	if page.After != "" {
		n, err := strconv.Atoi(page.After)
		if err != nil || n < 0 {
			return nil, product.PageInfo{}, errors.Errorf("invalid cursor %q", page.After)
		}
		start = n
	}
	if start > len(items) {
		start = len(items)
	}
	end := min(start+page.First, len(items))

	out := make([]T, end-start)
	copy(out, items[start:end])
	return out, product.PageInfo{
		HasNextPage: end < len(items),
		EndCursor:   strconv.Itoa(end),
	}, nil
}
