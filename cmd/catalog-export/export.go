package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/lumiere-storefront/internal/domain/money"
	"github.com/xenking/lumiere-storefront/internal/domain/product"
)

const (
	kindProduct    = "product"
	kindCollection = "collection"
)

type record struct {
	kind string
	data []byte
}

type stats struct {
	products    int
	collections int
}

// export pages the products and the collections concurrently and writes one
// JSON object per line into a gzip stream on w.
func export(ctx context.Context, catalog product.Catalog, w io.Writer, pageSize int) (stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	records := make(chan record, 64)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return exportProducts(gctx, catalog, pageSize, records) })
	g.Go(func() error { return exportCollections(gctx, catalog, pageSize, records) })

	produced := make(chan error, 1)
	go func() {
		produced <- g.Wait()
		close(records)
	}()

	gz := pgzip.NewWriter(w)
	var (
		st       stats
		writeErr error
	)
	for rec := range records {
		if writeErr != nil {
			continue
		}
		if _, err := gz.Write(rec.data); err != nil {
			writeErr = errors.Wrap(err, "write record")
			cancel()
			continue
		}
		switch rec.kind {
		case kindProduct:
			st.products++
		case kindCollection:
			st.collections++
		}
	}

	if err := <-produced; err != nil && writeErr == nil {
		_ = gz.Close()
		return st, err
	}
	if writeErr != nil {
		_ = gz.Close()
		return st, writeErr
	}
	if err := gz.Close(); err != nil {
		return st, errors.Wrap(err, "flush gzip")
	}
	return st, nil
}

func send(ctx context.Context, out chan<- record, kind string, e *jx.Encoder) error {
	data := append(e.Bytes(), '\n')
	select {
	case out <- record{kind: kind, data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func exportProducts(ctx context.Context, catalog product.Catalog, pageSize int, out chan<- record) error {
	page := product.Page{First: pageSize}
	for {
		list, err := catalog.ListProducts(ctx, page)
		if err != nil {
			return errors.Wrap(err, "list products")
		}
		for _, p := range list.Products {
			var e jx.Encoder
			encodeProduct(&e, p)
			if err := send(ctx, out, kindProduct, &e); err != nil {
				return err
			}
		}
		slog.Info("exported product page", slog.Int("count", len(list.Products)))
		if !list.PageInfo.HasNextPage {
			return nil
		}
		page.After = list.PageInfo.EndCursor
	}
}

func exportCollections(ctx context.Context, catalog product.Catalog, pageSize int, out chan<- record) error {
	page := product.Page{First: pageSize}
	for {
		list, err := catalog.ListCollections(ctx, page)
		if err != nil {
			return errors.Wrap(err, "list collections")
		}
		for _, c := range list.Collections {
			handles, err := collectionMembers(ctx, catalog, c.Handle, pageSize)
			if err != nil {
				return err
			}
			var e jx.Encoder
			encodeCollection(&e, c, handles)
			if err := send(ctx, out, kindCollection, &e); err != nil {
				return err
			}
		}
		if !list.PageInfo.HasNextPage {
			return nil
		}
		page.After = list.PageInfo.EndCursor
	}
}

// collectionMembers returns the handles of every product in a collection.
func collectionMembers(ctx context.Context, catalog product.Catalog, handle string, pageSize int) ([]string, error) {
	var handles []string
	page := product.Page{First: pageSize}
	for {
		c, err := catalog.GetCollection(ctx, handle, page)
		if err != nil {
			return nil, errors.Wrapf(err, "get collection %q", handle)
		}
		for _, p := range c.Products {
			handles = append(handles, p.Handle)
		}
		if !c.PageInfo.HasNextPage {
			return handles, nil
		}
		page.After = c.PageInfo.EndCursor
	}
}

func encodeMoney(e *jx.Encoder, m money.Money) {
	e.ObjStart()
	e.FieldStart("amount")
	e.Str(m.Amount.StringFixed(2))
	e.FieldStart("currencyCode")
	e.Str(m.CurrencyCode)
	e.ObjEnd()
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("type")
	e.Str(kindProduct)
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("handle")
	e.Str(p.Handle)
	e.FieldStart("title")
	e.Str(p.Title)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("imageUrl")
	e.Str(p.Image.URL)
	e.FieldStart("minPrice")
	encodeMoney(e, p.PriceRange.Min)
	e.FieldStart("maxPrice")
	encodeMoney(e, p.PriceRange.Max)
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

func encodeCollection(e *jx.Encoder, c product.Collection, handles []string) {
	e.ObjStart()
	e.FieldStart("type")
	e.Str(kindCollection)
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("handle")
	e.Str(c.Handle)
	e.FieldStart("title")
	e.Str(c.Title)
	e.FieldStart("description")
	e.Str(c.Description)
	e.FieldStart("products")
	e.ArrStart()
	for _, h := range handles {
		e.Str(h)
	}
	e.ArrEnd()
	e.ObjEnd()
}
