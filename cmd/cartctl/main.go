// Command cartctl manages one shopper's cart from the terminal. The cart
// identifier is kept in a local SQLite file, so consecutive runs keep working
// on the same storefront cart.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/lumiere-storefront/internal/commerce/memory"
	"github.com/xenking/lumiere-storefront/internal/commerce/storefront"
	"github.com/xenking/lumiere-storefront/internal/domain/cart"
	"github.com/xenking/lumiere-storefront/internal/domain/product"
	"github.com/xenking/lumiere-storefront/internal/storage"
	"github.com/xenking/lumiere-storefront/internal/storage/sqlite"
)

// slotKey is the single storage slot of the terminal shopper.
const slotKey = "cartId"

const usage = `usage: cartctl [flags] <command> [args]

commands:
  show                      print the cart
  add <variantId> [qty]     add a variant (qty defaults to 1)
  update <lineId> <qty>     set a line quantity (0 removes it)
  remove <lineId>           remove a line
  inc <lineId>              add one unit to a line
  dec <lineId>              take one unit from a line
  discount <code>           apply a discount code
  clear-discounts           remove all discount codes
  refresh                   reload the cart from the storefront
  products                  list the first page of products
`

type options struct {
	endpoint string
	token    string
	dbPath   string
	verbose  bool
}

type commerce interface {
	cart.Backend
	product.Catalog
}

func main() {
	var opts options
	flag.StringVar(&opts.endpoint, "endpoint", "", "storefront GraphQL endpoint (or LUMIERE_COMMERCE_ENDPOINT env); empty uses the built-in demo catalog")
	flag.StringVar(&opts.token, "token", "", "storefront access token (or LUMIERE_COMMERCE_ACCESS_TOKEN env)")
	flag.StringVar(&opts.dbPath, "db", "cartctl.db", "SQLite file holding the cart id")
	flag.BoolVar(&opts.verbose, "v", false, "log cart operations")
	flag.Usage = func() {
		_, _ = fmt.Fprint(flag.CommandLine.Output(), usage, "\nflags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if opts.endpoint == "" {
		opts.endpoint = os.Getenv("LUMIERE_COMMERCE_ENDPOINT")
	}
	if opts.token == "" {
		opts.token = os.Getenv("LUMIERE_COMMERCE_ACCESS_TOKEN")
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts, flag.Args(), os.Stdout); err != nil {
		slog.Error("cartctl failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, args []string, out io.Writer) error {
	backend, err := newCommerce(opts)
	if err != nil {
		return err
	}

	kv, err := sqlite.Open(ctx, opts.dbPath)
	if err != nil {
		return errors.Wrap(err, "open cart storage")
	}
	defer func() { _ = kv.Close() }()

	lg := zap.NewNop()
	if opts.verbose {
		if lg, err = zap.NewDevelopment(); err != nil {
			return errors.Wrap(err, "create logger")
		}
		defer func() { _ = lg.Sync() }()
	}

	store := cart.NewStore(backend, storage.Slot{KV: kv, Key: slotKey}, cart.StoreOptions{
		Logger: lg,
		Alerter: cart.AlerterFunc(func(_ context.Context, message string) {
			slog.Warn(message)
		}),
		// Read-only commands must not create a cart.
		LazyCreate: true,
	})
	if err := store.Initialize(ctx); err != nil {
		return errors.Wrap(err, "load cart")
	}

	if args[0] == "products" {
		return listProducts(ctx, backend, out)
	}
	if err := dispatch(ctx, store, args); err != nil {
		return err
	}
	return printCart(out, store.State())
}

func newCommerce(opts options) (commerce, error) {
	if opts.endpoint == "" {
		slog.Info("no storefront endpoint configured, using the demo catalog")
		return memory.New(memory.Config{}), nil
	}
	client, err := storefront.New(storefront.Config{Endpoint: opts.endpoint, AccessToken: opts.token})
	if err != nil {
		return nil, errors.Wrap(err, "create storefront client")
	}
	return client, nil
}

func dispatch(ctx context.Context, store *cart.Store, args []string) error {
	cmd, rest := args[0], args[1:]
	arg := func(i int) (string, error) {
		if i >= len(rest) {
			return "", errors.Errorf("%s: missing argument %d", cmd, i+1)
		}
		return rest[i], nil
	}
	intArg := func(i int, def int) (int, error) {
		if i >= len(rest) {
			return def, nil
		}
		n, err := strconv.Atoi(rest[i])
		if err != nil {
			return 0, errors.Wrapf(err, "%s: quantity", cmd)
		}
		return n, nil
	}

	switch cmd {
	case "show":
		return nil
	case "refresh":
		return store.Refresh(ctx)
	case "clear-discounts":
		return store.ClearDiscountCodes(ctx)
	}

	id, err := arg(0)
	if err != nil {
		return err
	}
	switch cmd {
	case "add":
		qty, err := intArg(1, 1)
		if err != nil {
			return err
		}
		return store.AddToCart(ctx, id, qty)
	case "update":
		if len(rest) < 2 {
			return errors.Errorf("%s: missing quantity", cmd)
		}
		qty, err := intArg(1, 0)
		if err != nil {
			return err
		}
		return store.UpdateQuantity(ctx, id, qty)
	case "remove":
		return store.RemoveItem(ctx, id)
	case "inc":
		return store.Increment(ctx, id)
	case "dec":
		return store.Decrement(ctx, id)
	case "discount":
		return store.ApplyDiscountCode(ctx, id)
	default:
		return errors.Errorf("unknown command %q", cmd)
	}
}

func printCart(out io.Writer, st cart.State) error {
	c := st.Cart
	if c.IsEmpty() {
		_, err := fmt.Fprintln(out, "Your cart is empty.")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "LINE\tPRODUCT\tVARIANT\tQTY\tTOTAL")
	for _, l := range c.Lines {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			l.ID, l.Merchandise.Product.Title, l.Merchandise.Title, l.Quantity, l.Cost)
	}
	_, _ = fmt.Fprintln(tw)
	_, _ = fmt.Fprintf(tw, "Items\t%d\n", st.ItemCount)
	_, _ = fmt.Fprintf(tw, "Subtotal\t%s\n", c.Cost.Subtotal)
	if !c.Cost.Discount.IsZero() {
		_, _ = fmt.Fprintf(tw, "Discount\t-%s\n", c.Cost.Discount)
	}
	for _, dc := range c.DiscountCodes {
		state := "applied"
		if !dc.Applicable {
			state = "not applicable"
		}
		_, _ = fmt.Fprintf(tw, "Code %s\t%s\n", dc.Code, state)
	}
	_, _ = fmt.Fprintf(tw, "Total\t%s\n", c.Cost.Total)
	_, _ = fmt.Fprintf(tw, "Checkout\t%s\n", c.CheckoutURL)
	return tw.Flush()
}

func listProducts(ctx context.Context, catalog product.Catalog, out io.Writer) error {
	list, err := catalog.ListProducts(ctx, product.Page{First: 50})
	if err != nil {
		return errors.Wrap(err, "list products")
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PRODUCT\tVARIANT\tVARIANT ID\tPRICE")
	for _, p := range list.Products {
		for _, v := range p.Variants {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Title, v.Title, v.ID, v.Price)
		}
	}
	return tw.Flush()
}
