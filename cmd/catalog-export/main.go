// Command catalog-export writes every product and collection of the
// storefront catalog as gzip-compressed JSON lines.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/lumiere-storefront/internal/commerce/memory"
	"github.com/xenking/lumiere-storefront/internal/commerce/storefront"
	"github.com/xenking/lumiere-storefront/internal/domain/product"
)

func main() {
	var (
		endpoint string
		token    string
		outPath  string
		pageSize int
	)

	flag.StringVar(&endpoint, "endpoint", "", "storefront GraphQL endpoint (or LUMIERE_COMMERCE_ENDPOINT env); empty exports the built-in demo catalog")
	flag.StringVar(&token, "token", "", "storefront access token (or LUMIERE_COMMERCE_ACCESS_TOKEN env)")
	flag.StringVar(&outPath, "out", "catalog.jsonl.gz", "output file")
	flag.IntVar(&pageSize, "page-size", product.MaxPageSize, "products per request")
	flag.Parse()

	if endpoint == "" {
		endpoint = os.Getenv("LUMIERE_COMMERCE_ENDPOINT")
	}
	if token == "" {
		token = os.Getenv("LUMIERE_COMMERCE_ACCESS_TOKEN")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, endpoint, token, outPath, pageSize); err != nil {
		slog.Error("catalog export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, endpoint, token, outPath string, pageSize int) error {
	var catalog product.Catalog
	if endpoint == "" {
		slog.Info("no storefront endpoint configured, exporting the demo catalog")
		catalog = memory.New(memory.Config{})
	} else {
		client, err := storefront.New(storefront.Config{Endpoint: endpoint, AccessToken: token})
		if err != nil {
			return errors.Wrap(err, "create storefront client")
		}
		catalog = client
	}

	f, err := os.Create(outPath)
	if err != nil {
		return errors.Wrapf(err, "create %s", outPath)
	}

	st, err := export(ctx, catalog, f, pageSize)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = errors.Wrapf(closeErr, "close %s", outPath)
	}
	if err != nil {
		_ = os.Remove(outPath)
		return err
	}

	slog.Info("catalog exported",
		slog.String("path", outPath),
		slog.Int("products", st.products),
		slog.Int("collections", st.collections),
	)
	return nil
}
