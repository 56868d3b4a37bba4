package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_DemoCatalog(t *testing.T) {
	ctx := context.Background()
	opts := options{dbPath: filepath.Join(t.TempDir(), "cartctl.db")}

	var out bytes.Buffer
	require.NoError(t, run(ctx, opts, []string{"show"}, &out))
	assert.Contains(t, out.String(), "Your cart is empty.")

	out.Reset()
	require.NoError(t, run(ctx, opts, []string{"products"}, &out))
	assert.Contains(t, out.String(), "gid://shopify/ProductVariant/2001")
	assert.Contains(t, out.String(), "420.00 EUR")

	out.Reset()
	require.NoError(t, run(ctx, opts, []string{"add", "gid://shopify/ProductVariant/2001", "2"}, &out))
	assert.Contains(t, out.String(), "Tortoise")
	assert.Contains(t, out.String(), "840.00 EUR")
	assert.Contains(t, out.String(), "https://checkout.lumiere.example/cart/")
}

func TestRun_BadInput(t *testing.T) {
	ctx := context.Background()
	opts := options{dbPath: filepath.Join(t.TempDir(), "cartctl.db")}

	for _, args := range [][]string{
		{"frobnicate", "x"},
		{"add"},
		{"add", "gid://shopify/ProductVariant/2001", "two"},
		{"update", "gid://shopify/CartLine/1"},
	} {
		var out bytes.Buffer
		assert.Error(t, run(ctx, opts, args, &out), "%v", args)
	}
}
