package handler

import (
	"github.com/go-faster/jx"

	"github.com/xenking/lumiere-storefront/internal/domain/cart"
	"github.com/xenking/lumiere-storefront/internal/domain/money"
	"github.com/xenking/lumiere-storefront/internal/domain/product"
)

// The response shapes mirror the storefront API field names so that views
// written against either read the same JSON.

func encodeMoney(e *jx.Encoder, m money.Money) {
	e.ObjStart()
	e.FieldStart("amount")
	e.Str(m.Amount.StringFixed(2))
	e.FieldStart("currencyCode")
	e.Str(m.CurrencyCode)
	e.ObjEnd()
}

func encodeImage(e *jx.Encoder, img product.Image) {
	if img.URL == "" {
		e.Null()
		return
	}
	e.ObjStart()
	e.FieldStart("url")
	e.Str(img.URL)
	e.FieldStart("altText")
	e.Str(img.AltText)
	e.ObjEnd()
}

func encodeState(e *jx.Encoder, st cart.State) {
	e.ObjStart()
	e.FieldStart("cart")
	encodeCart(e, st.Cart)
	e.FieldStart("isLoading")
	e.Bool(st.IsLoading)
	e.FieldStart("isCartOpen")
	e.Bool(st.IsCartOpen)
	e.FieldStart("itemCount")
	e.Int(st.ItemCount)
	e.ObjEnd()
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	if c == nil {
		e.Null()
		return
	}
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("checkoutUrl")
	e.Str(c.CheckoutURL)
	e.FieldStart("totalQuantity")
	e.Int(c.TotalQuantity)

	e.FieldStart("cost")
	e.ObjStart()
	e.FieldStart("subtotalAmount")
	encodeMoney(e, c.Cost.Subtotal)
	e.FieldStart("discountAmount")
	encodeMoney(e, c.Cost.Discount)
	e.FieldStart("totalAmount")
	encodeMoney(e, c.Cost.Total)
	e.ObjEnd()

	e.FieldStart("discountCodes")
	e.ArrStart()
	for _, dc := range c.DiscountCodes {
		e.ObjStart()
		e.FieldStart("code")
		e.Str(dc.Code)
		e.FieldStart("applicable")
		e.Bool(dc.Applicable)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range c.Lines {
		encodeLine(e, l)
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeLine(e *jx.Encoder, l cart.Line) {
	m := l.Merchandise
	e.ObjStart()
	e.FieldStart("id")
	e.Str(l.ID)
	e.FieldStart("quantity")
	e.Int(l.Quantity)
	e.FieldStart("cost")
	encodeMoney(e, l.Cost)
	e.FieldStart("merchandise")
	e.ObjStart()
	e.FieldStart("id")
	e.Str(m.VariantID)
	e.FieldStart("title")
	e.Str(m.Title)
	e.FieldStart("price")
	encodeMoney(e, m.Price)
	e.FieldStart("product")
	e.ObjStart()
	e.FieldStart("title")
	e.Str(m.Product.Title)
	e.FieldStart("handle")
	e.Str(m.Product.Handle)
	e.FieldStart("image")
	encodeImage(e, m.Product.Image)
	e.ObjEnd()
	e.ObjEnd()
	e.ObjEnd()
}

func encodePageInfo(e *jx.Encoder, info product.PageInfo) {
	e.ObjStart()
	e.FieldStart("hasNextPage")
	e.Bool(info.HasNextPage)
	e.FieldStart("endCursor")
	e.Str(info.EndCursor)
	e.ObjEnd()
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("title")
	e.Str(p.Title)
	e.FieldStart("handle")
	e.Str(p.Handle)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("image")
	encodeImage(e, p.Image)
	e.FieldStart("priceRange")
	e.ObjStart()
	e.FieldStart("min")
	encodeMoney(e, p.PriceRange.Min)
	e.FieldStart("max")
	encodeMoney(e, p.PriceRange.Max)
	e.ObjEnd()
	e.FieldStart("variants")
	e.ArrStart()
	for _, v := range p.Variants {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(v.ID)
		e.FieldStart("title")
		e.Str(v.Title)
		e.FieldStart("availableForSale")
		e.Bool(v.AvailableForSale)
		e.FieldStart("price")
		encodeMoney(e, v.Price)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeProducts(e *jx.Encoder, products []product.Product) {
	e.ArrStart()
	for _, p := range products {
		encodeProduct(e, p)
	}
	e.ArrEnd()
}

func encodeCollection(e *jx.Encoder, c *product.Collection, withProducts bool) {
	if c == nil {
		e.Null()
		return
	}
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("title")
	e.Str(c.Title)
	e.FieldStart("handle")
	e.Str(c.Handle)
	e.FieldStart("description")
	e.Str(c.Description)
	e.FieldStart("image")
	encodeImage(e, c.Image)
	if withProducts {
		e.FieldStart("products")
		encodeProducts(e, c.Products)
		e.FieldStart("pageInfo")
		encodePageInfo(e, c.PageInfo)
	}
	e.ObjEnd()
}
