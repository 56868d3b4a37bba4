package storefront

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/lumiere-storefront/internal/domain/cart"
	"github.com/xenking/lumiere-storefront/internal/domain/money"
	"github.com/xenking/lumiere-storefront/internal/domain/product"
)

type decodeFunc func(d *jx.Decoder) error

// objField decodes one field of the object at d with fn and skips the rest.
func objField(name string, fn decodeFunc) decodeFunc {
	return func(d *jx.Decoder) error {
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != name {
				return d.Skip()
			}
			return fn(d)
		})
	}
}

// nullable consumes a JSON null or defers to fn.
func nullable(fn decodeFunc) decodeFunc {
	return func(d *jx.Decoder) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		return fn(d)
	}
}

func decodeMoney(d *jx.Decoder) (money.Money, error) {
	var m money.Money
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "amount":
			s, err := d.Str()
			if err != nil {
				return err
			}
			if m.Amount, err = decimal.NewFromString(s); err != nil {
				return errors.Wrapf(err, "amount %q", s)
			}
			return nil
		case "currencyCode":
			s, err := d.Str()
			m.CurrencyCode = s
			return err
		default:
			return d.Skip()
		}
	})
	return m, err
}

func moneyInto(dst *money.Money) decodeFunc {
	return func(d *jx.Decoder) error {
		m, err := decodeMoney(d)
		*dst = m
		return err
	}
}

func decodeImage(d *jx.Decoder) (product.Image, error) {
	var img product.Image
	if d.Next() == jx.Null {
		return img, d.Null()
	}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "url":
			img.URL, err = d.Str()
		case "altText":
			if d.Next() == jx.Null {
				return d.Null()
			}
			img.AltText, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return img, err
}

func decodePageInfo(d *jx.Decoder) (product.PageInfo, error) {
	var info product.PageInfo
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "hasNextPage":
			info.HasNextPage, err = d.Bool()
		case "endCursor":
			if d.Next() == jx.Null {
				return d.Null()
			}
			info.EndCursor, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return info, err
}

// decodeCart decodes the CartFields fragment.
func decodeCart(d *jx.Decoder) (*cart.Cart, error) {
	c := &cart.Cart{}
	discount := decimal.Zero
	var discountCurrency string

	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			c.ID, err = d.Str()
		case "checkoutUrl":
			c.CheckoutURL, err = d.Str()
		case "totalQuantity":
			c.TotalQuantity, err = d.Int()
		case "cost":
			err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				switch string(key) {
				case "subtotalAmount":
					return moneyInto(&c.Cost.Subtotal)(d)
				case "totalAmount":
					return moneyInto(&c.Cost.Total)(d)
				default:
					return d.Skip()
				}
			})
		case "discountAllocations":
			err = d.Arr(objField("discountedAmount", func(d *jx.Decoder) error {
				m, err := decodeMoney(d)
				if err != nil {
					return err
				}
				discount = discount.Add(m.Amount)
				discountCurrency = m.CurrencyCode
				return nil
			}))
		case "discountCodes":
			err = d.Arr(func(d *jx.Decoder) error {
				dc, err := decodeDiscountCode(d)
				c.DiscountCodes = append(c.DiscountCodes, dc)
				return err
			})
		case "lines":
			err = objField("nodes", func(d *jx.Decoder) error {
				return d.Arr(func(d *jx.Decoder) error {
					l, err := decodeLine(d)
					if err != nil {
						return err
					}
					c.Lines = append(c.Lines, l)
					return nil
				})
			})(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "cart.%s", key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if discountCurrency == "" {
		discountCurrency = c.Cost.Subtotal.CurrencyCode
	}
	c.Cost.Discount = money.New(discount, discountCurrency)
	return c, nil
}

func decodeDiscountCode(d *jx.Decoder) (cart.DiscountCode, error) {
	var dc cart.DiscountCode
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "code":
			dc.Code, err = d.Str()
		case "applicable":
			dc.Applicable, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	return dc, err
}

func decodeLine(d *jx.Decoder) (cart.Line, error) {
	var l cart.Line
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			l.ID, err = d.Str()
		case "quantity":
			l.Quantity, err = d.Int()
		case "cost":
			err = objField("totalAmount", moneyInto(&l.Cost))(d)
		case "merchandise":
			l.Merchandise, err = decodeMerchandise(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return l, err
}

func decodeMerchandise(d *jx.Decoder) (cart.Merchandise, error) {
	var m cart.Merchandise
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			m.VariantID, err = d.Str()
		case "title":
			m.Title, err = d.Str()
		case "price":
			m.Price, err = decodeMoney(d)
		case "product":
			err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				var err error
				switch string(key) {
				case "title":
					m.Product.Title, err = d.Str()
				case "handle":
					m.Product.Handle, err = d.Str()
				case "featuredImage":
					m.Product.Image, err = decodeImage(d)
				default:
					err = d.Skip()
				}
				return err
			})
		default:
			err = d.Skip()
		}
		return err
	})
	return m, err
}

// decodeProduct decodes the ProductFields fragment.
func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = d.Str()
		case "title":
			p.Title, err = d.Str()
		case "handle":
			p.Handle, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "featuredImage":
			p.Image, err = decodeImage(d)
		case "priceRange":
			err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				switch string(key) {
				case "minVariantPrice":
					return moneyInto(&p.PriceRange.Min)(d)
				case "maxVariantPrice":
					return moneyInto(&p.PriceRange.Max)(d)
				default:
					return d.Skip()
				}
			})
		case "variants":
			err = objField("nodes", func(d *jx.Decoder) error {
				return d.Arr(func(d *jx.Decoder) error {
					v, err := decodeVariant(d)
					if err != nil {
						return err
					}
					p.Variants = append(p.Variants, v)
					return nil
				})
			})(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "product.%s", key)
		}
		return nil
	})
	return p, err
}

func decodeVariant(d *jx.Decoder) (product.Variant, error) {
	var v product.Variant
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			v.ID, err = d.Str()
		case "title":
			v.Title, err = d.Str()
		case "availableForSale":
			v.AvailableForSale, err = d.Bool()
		case "price":
			v.Price, err = decodeMoney(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return v, err
}

// decodeProductConnection decodes {pageInfo, nodes: [ProductFields]}.
func decodeProductConnection(d *jx.Decoder) ([]product.Product, product.PageInfo, error) {
	var (
		products []product.Product
		info     product.PageInfo
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "pageInfo":
			info, err = decodePageInfo(d)
		case "nodes":
			err = d.Arr(func(d *jx.Decoder) error {
				p, err := decodeProduct(d)
				if err != nil {
					return err
				}
				products = append(products, p)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	return products, info, err
}

// decodeCollection decodes a collection node, with products when selected.
func decodeCollection(d *jx.Decoder) (product.Collection, error) {
	var c product.Collection
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			c.ID, err = d.Str()
		case "title":
			c.Title, err = d.Str()
		case "handle":
			c.Handle, err = d.Str()
		case "description":
			c.Description, err = d.Str()
		case "image":
			c.Image, err = decodeImage(d)
		case "products":
			c.Products, c.PageInfo, err = decodeProductConnection(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "collection.%s", key)
		}
		return nil
	})
	return c, err
}
