package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/lumiere-storefront/internal/commerce/memory"
	"github.com/xenking/lumiere-storefront/internal/domain/product"
)

type exported struct {
	kind     string
	handle   string
	products []string
	variants int
}

func readExport(t *testing.T, data []byte) []exported {
	t.Helper()
	gz, err := pgzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = gz.Close() }()

	var out []exported
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		var rec exported
		err := jx.DecodeBytes(scanner.Bytes()).ObjBytes(func(d *jx.Decoder, key []byte) error {
			var err error
			switch string(key) {
			case "type":
				rec.kind, err = d.Str()
			case "handle":
				rec.handle, err = d.Str()
			case "products":
				err = d.Arr(func(d *jx.Decoder) error {
					h, err := d.Str()
					rec.products = append(rec.products, h)
					return err
				})
			case "variants":
				err = d.Arr(func(d *jx.Decoder) error {
					rec.variants++
					return d.Skip()
				})
			default:
				err = d.Skip()
			}
			return err
		})
		require.NoError(t, err)
		out = append(out, rec)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestExport(t *testing.T) {
	var buf bytes.Buffer
	st, err := export(context.Background(), memory.New(memory.Config{}), &buf, 2)
	require.NoError(t, err)
	assert.Equal(t, stats{products: 6, collections: 3}, st)

	records := readExport(t, buf.Bytes())
	require.Len(t, records, 9)

	byHandle := make(map[string]exported)
	for _, r := range records {
		byHandle[r.kind+"/"+r.handle] = r
	}
	assert.Equal(t, 3, byHandle["product/aurele"].variants)
	assert.Equal(t, []string{"isaure", "marceau"}, byHandle["collection/new-arrivals"].products)
	assert.Equal(t, []string{"solene", "isaure", "bastien"}, byHandle["collection/sun"].products)
}

type failingCatalog struct {
	product.Catalog
}

func (failingCatalog) ListProducts(context.Context, product.Page) (*product.List, error) {
	return nil, errors.New("storefront unavailable")
}

func TestExport_CatalogError(t *testing.T) {
	var buf bytes.Buffer
	_, err := export(context.Background(), failingCatalog{Catalog: memory.New(memory.Config{})}, &buf, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storefront unavailable")
}
