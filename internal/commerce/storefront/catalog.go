package storefront

import (
	"context"

	"github.com/go-faster/jx"

	"github.com/xenking/lumiere-storefront/internal/domain/product"
)

var _ product.Catalog = (*Client)(nil)

// ListProducts returns one page of products.
func (c *Client) ListProducts(ctx context.Context, page product.Page) (*product.List, error) {
	page = page.Normalize()
	out := &product.List{}
	err := c.do(ctx, opProducts,
		func(e *jx.Encoder) { encodePage(e, page.First, page.After) },
		objField("products", func(d *jx.Decoder) error {
			var err error
			out.Products, out.PageInfo, err = decodeProductConnection(d)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetProduct returns the product with the given handle.
func (c *Client) GetProduct(ctx context.Context, handle string) (*product.Product, error) {
	var out *product.Product
	err := c.do(ctx, opProductByHandle,
		func(e *jx.Encoder) {
			e.FieldStart("handle")
			e.Str(handle)
		},
		objField("product", nullable(func(d *jx.Decoder) error {
			p, err := decodeProduct(d)
			out = &p
			return err
		})),
	)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, product.ErrNotFound
	}
	return out, nil
}

// ListCollections returns one page of collections.
func (c *Client) ListCollections(ctx context.Context, page product.Page) (*product.CollectionList, error) {
	page = page.Normalize()
	out := &product.CollectionList{}
	err := c.do(ctx, opCollections,
		func(e *jx.Encoder) { encodePage(e, page.First, page.After) },
		objField("collections", func(d *jx.Decoder) error {
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				switch string(key) {
				case "pageInfo":
					info, err := decodePageInfo(d)
					out.PageInfo = info
					return err
				case "nodes":
					return d.Arr(func(d *jx.Decoder) error {
						col, err := decodeCollection(d)
						if err != nil {
							return err
						}
						out.Collections = append(out.Collections, col)
						return nil
					})
				default:
					return d.Skip()
				}
			})
		}),
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetCollection returns a collection with one page of its products.
func (c *Client) GetCollection(ctx context.Context, handle string, page product.Page) (*product.Collection, error) {
	page = page.Normalize()
	var out *product.Collection
	err := c.do(ctx, opCollectionByHandle,
		func(e *jx.Encoder) {
			e.FieldStart("handle")
			e.Str(handle)
			encodePage(e, page.First, page.After)
		},
		objField("collection", nullable(func(d *jx.Decoder) error {
			col, err := decodeCollection(d)
			out = &col
			return err
		})),
	)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, product.ErrNotFound
	}
	return out, nil
}
