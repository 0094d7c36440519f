// Package cartctl implements the commands of the device-local guest cart
// client.
package cartctl

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"storefront/internal/domain"
	"storefront/internal/guestcart"
	"storefront/internal/money"
	cartsvc "storefront/internal/service/cart"
	"storefront/internal/service/merge"
)

// DefaultKey names the cart when the caller does not pick one.
const DefaultKey = "device"

var errUsage = errors.New("usage: cartctl [add|remove|set|clear|show|export|destroy] ...")

// MergePayload is the body of POST /me/cart/merge.
type MergePayload struct {
	AttemptToken string              `json:"attemptToken"`
	Lines        []cartsvc.LineInput `json:"lines"`
}

// Runner executes one command against a guest cart.
type Runner struct {
	Storage  guestcart.Storage
	Key      string
	Currency string
	Options  []guestcart.Option
	Out      io.Writer
}

func (r *Runner) open(ctx context.Context) (*guestcart.Store, error) {
	key := r.Key
	if key == "" {
		key = DefaultKey
	}
	return guestcart.Open(ctx, r.Storage, key, r.Options...)
}

// Run dispatches args[0] as the command name.
func (r *Runner) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	store, err := r.open(ctx)
	if err != nil {
		return err
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "add":
		return r.add(ctx, store, rest)
	case "remove":
		if len(rest) != 1 {
			return fmt.Errorf("usage: cartctl remove <variant-id>")
		}
		if err := store.RemoveItem(ctx, rest[0]); err != nil {
			return err
		}
		return r.show(store)
	case "set":
		if len(rest) != 2 {
			return fmt.Errorf("usage: cartctl set <variant-id> <quantity>")
		}
		qty, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("quantity: %w", err)
		}
		if err := store.UpdateQuantity(ctx, rest[0], qty); err != nil {
			return err
		}
		return r.show(store)
	case "clear":
		if err := store.Clear(ctx); err != nil {
			return err
		}
		return r.show(store)
	case "destroy":
		return store.Destroy(ctx)
	case "show":
		return r.show(store)
	case "export":
		return r.export(store)
	default:
		return errUsage
	}
}

func (r *Runner) add(ctx context.Context, store *guestcart.Store, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	price := fs.String("price", "", "unit price, e.g. 19.99")
	name := fs.String("name", "", "product name")
	variantName := fs.String("variant", "", "variant name")
	qty := fs.Int("qty", 1, "quantity")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *price == "" {
		return fmt.Errorf("usage: cartctl add -price 19.99 [-qty 1] [-name N] <variant-id>")
	}
	cents, err := money.ParseCents(*price)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	v := domain.ProductVariant{
		ID:          fs.Arg(0),
		ProductName: *name,
		VariantName: *variantName,
		PriceCents:  cents,
	}
	if err := store.AddItem(ctx, v, *qty); err != nil {
		return err
	}
	return r.show(store)
}

func (r *Runner) show(store *guestcart.Store) error {
	w := tabwriter.NewWriter(r.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VARIANT\tNAME\tQTY\tUNIT\tTOTAL")
	for _, l := range store.Lines() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			l.ProductVariantID,
			l.Snapshot.ProductName,
			l.Quantity,
			money.FormatCents(l.UnitPriceCents, r.Currency),
			money.FormatCents(l.TotalCents(), r.Currency),
		)
	}
	fmt.Fprintf(w, "\t\t%d\t\t%s\n", store.TotalItems(), money.FormatCents(store.TotalPrice(), r.Currency))
	return w.Flush()
}

// export prints the merge request body for the current cart. The attempt
// token is stable for identical content within one filling of the cart, so
// re-sending after a lost response does not add the lines twice.
func (r *Runner) export(store *guestcart.Store) error {
	lines := store.Lines()
	payload := MergePayload{Lines: make([]cartsvc.LineInput, 0, len(lines))}
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		payload.Lines = append(payload.Lines, cartsvc.LineInput{ProductVariantID: l.ProductVariantID, Quantity: l.Quantity})
	}
	if len(payload.Lines) > 0 {
		payload.AttemptToken = merge.AttemptToken(store.AnonymousID(), store.Nonce(), lines)
	}
	enc := json.NewEncoder(r.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
