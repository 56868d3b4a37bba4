package storefront

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/lumiere-storefront/internal/domain/cart"
)

var _ cart.Backend = (*Client)(nil)

// cartPayload is the common shape of every cart mutation result.
type cartPayload struct {
	cart       *cart.Cart
	userErrors []FieldError
}

func (p *cartPayload) decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "cart":
			return nullable(func(d *jx.Decoder) error {
				c, err := decodeCart(d)
				p.cart = c
				return err
			})(d)
		case "userErrors":
			return d.Arr(func(d *jx.Decoder) error {
				fe, err := decodeFieldError(d)
				p.userErrors = append(p.userErrors, fe)
				return err
			})
		default:
			return d.Skip()
		}
	})
}

func decodeFieldError(d *jx.Decoder) (FieldError, error) {
	var fe FieldError
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "message":
			msg, err := d.Str()
			fe.Message = msg
			return err
		case "field":
			return nullable(func(d *jx.Decoder) error {
				return d.Arr(func(d *jx.Decoder) error {
					s, err := d.Str()
					fe.Field = append(fe.Field, s)
					return err
				})
			})(d)
		default:
			return d.Skip()
		}
	})
	return fe, err
}

// mutateCart runs a cart mutation whose payload sits under field.
func (c *Client) mutateCart(ctx context.Context, op *operation, field string, vars func(e *jx.Encoder)) (*cart.Cart, error) {
	var p cartPayload
	if err := c.do(ctx, op, vars, objField(field, nullable(p.decode))); err != nil {
		return nil, err
	}
	if len(p.userErrors) > 0 {
		return nil, &UserError{Op: op.name, Errors: p.userErrors}
	}
	if p.cart == nil {
		return nil, errors.Errorf("%s: response has no cart", op.name)
	}
	return p.cart, nil
}

// CreateCart creates an empty cart.
func (c *Client) CreateCart(ctx context.Context) (*cart.Cart, error) {
	return c.mutateCart(ctx, opCartCreate, "cartCreate", nil)
}

// GetCart fetches a cart by ID. A null cart, or query errors that reject the
// ID itself, yield cart.ErrNotFound. Other GraphQL errors (throttling,
// internal errors) are returned as *GraphQLError so the caller keeps the ID.
func (c *Client) GetCart(ctx context.Context, id string) (*cart.Cart, error) {
	var out *cart.Cart
	err := c.do(ctx, opGetCart,
		func(e *jx.Encoder) {
			e.FieldStart("id")
			e.Str(id)
		},
		objField("cart", nullable(func(d *jx.Decoder) error {
			var err error
			out, err = decodeCart(d)
			return err
		})),
	)
	var gqlErr *GraphQLError
	if errors.As(err, &gqlErr) && gqlErr.NotFound() {
		return nil, errors.Wrap(cart.ErrNotFound, gqlErr.Error())
	}
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, cart.ErrNotFound
	}
	return out, nil
}

// AddLine adds quantity units of a variant to the cart.
func (c *Client) AddLine(ctx context.Context, cartID, variantID string, quantity int) (*cart.Cart, error) {
	return c.mutateCart(ctx, opCartLinesAdd, "cartLinesAdd", func(e *jx.Encoder) {
		e.FieldStart("cartId")
		e.Str(cartID)
		e.FieldStart("lines")
		e.ArrStart()
		e.ObjStart()
		e.FieldStart("merchandiseId")
		e.Str(variantID)
		e.FieldStart("quantity")
		e.Int(quantity)
		e.ObjEnd()
		e.ArrEnd()
	})
}

// UpdateLine sets the quantity of a line.
func (c *Client) UpdateLine(ctx context.Context, cartID, lineID string, quantity int) (*cart.Cart, error) {
	return c.mutateCart(ctx, opCartLinesUpdate, "cartLinesUpdate", func(e *jx.Encoder) {
		e.FieldStart("cartId")
		e.Str(cartID)
		e.FieldStart("lines")
		e.ArrStart()
		e.ObjStart()
		e.FieldStart("id")
		e.Str(lineID)
		e.FieldStart("quantity")
		e.Int(quantity)
		e.ObjEnd()
		e.ArrEnd()
	})
}

// RemoveLine removes a line from the cart.
func (c *Client) RemoveLine(ctx context.Context, cartID, lineID string) (*cart.Cart, error) {
	return c.mutateCart(ctx, opCartLinesRemove, "cartLinesRemove", func(e *jx.Encoder) {
		e.FieldStart("cartId")
		e.Str(cartID)
		e.FieldStart("lineIds")
		e.ArrStart()
		e.Str(lineID)
		e.ArrEnd()
	})
}

// UpdateDiscountCodes replaces the discount codes of the cart. An empty list
// removes all codes.
func (c *Client) UpdateDiscountCodes(ctx context.Context, cartID string, codes []string) (*cart.Cart, error) {
	return c.mutateCart(ctx, opCartDiscountCodesUpdate, "cartDiscountCodesUpdate", func(e *jx.Encoder) {
		e.FieldStart("cartId")
		e.Str(cartID)
		e.FieldStart("discountCodes")
		e.ArrStart()
		for _, code := range codes {
			e.Str(code)
		}
		e.ArrEnd()
	})
}
