package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/stockline/internal/domain"
	"github.com/roach88/stockline/internal/engine"
)

// LineOptions holds flags shared by the line subcommands.
type LineOptions struct {
	*RootOptions
	Price      string
	Quantity   int64
	RequestKey string
}

// NewLineCommand creates the line command and its subcommands.
func NewLineCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "line",
		Short: "Add, amend or remove document line entries",
		Long: `Mutate document lines. Each mutation updates the item quantity, the
document total and the item's low-stock alert in one transaction.

Examples:
  stockline line add 3 17 160 --key order-42
  stockline line update 3 17 --quantity 100
  stockline line remove 3 17`,
	}

	cmd.AddCommand(newLineAddCommand(&LineOptions{RootOptions: rootOpts}))
	cmd.AddCommand(newLineUpdateCommand(&LineOptions{RootOptions: rootOpts}))
	cmd.AddCommand(newLineRemoveCommand(&LineOptions{RootOptions: rootOpts}))
	cmd.AddCommand(newDocumentDeleteCommand(&LineOptions{RootOptions: rootOpts}))

	return cmd
}

func newLineAddCommand(opts *LineOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "add <document-id> <item-id> <quantity>",
		Short:         "Add a line to a document",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			price, err := opts.price()
			if err != nil {
				return err
			}
			return opts.runLine(cmd, func(e *engine.Engine) (engine.LineResult, error) {
				return e.AddLine(cmd.Context(), engine.AddLineRequest{
					DocumentID: ids[0],
					ItemID:     ids[1],
					Quantity:   ids[2],
					UnitPrice:  price,
					RequestKey: opts.RequestKey,
				})
			})
		},
	}
	cmd.Flags().StringVar(&opts.Price, "price", "", "unit price (default: the item's current price)")
	cmd.Flags().StringVar(&opts.RequestKey, "key", "", "idempotency key")
	return cmd
}

func newLineUpdateCommand(opts *LineOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "update <document-id> <item-id>",
		Short:         "Change a line's quantity and/or unit price",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			price, err := opts.price()
			if err != nil {
				return err
			}
			req := engine.UpdateLineRequest{
				DocumentID: ids[0],
				ItemID:     ids[1],
				UnitPrice:  price,
				RequestKey: opts.RequestKey,
			}
			if cmd.Flags().Changed("quantity") {
				req.Quantity = &opts.Quantity
			}
			return opts.runLine(cmd, func(e *engine.Engine) (engine.LineResult, error) {
				return e.UpdateLine(cmd.Context(), req)
			})
		},
	}
	cmd.Flags().Int64Var(&opts.Quantity, "quantity", 0, "new line quantity")
	cmd.Flags().StringVar(&opts.Price, "price", "", "new unit price")
	cmd.Flags().StringVar(&opts.RequestKey, "key", "", "idempotency key")
	return cmd
}

func newLineRemoveCommand(opts *LineOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "remove <document-id> <item-id>",
		Short:         "Remove a line, reversing its effect on stock",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return opts.runLine(cmd, func(e *engine.Engine) (engine.LineResult, error) {
				return e.RemoveLine(cmd.Context(), engine.RemoveLineRequest{
					DocumentID: ids[0],
					ItemID:     ids[1],
					RequestKey: opts.RequestKey,
				})
			})
		},
	}
	cmd.Flags().StringVar(&opts.RequestKey, "key", "", "idempotency key")
	return cmd
}

func newDocumentDeleteCommand(opts *LineOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "delete-document <document-id>",
		Short:         "Remove every line of a document, then the document",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			out := opts.formatter(cmd)
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.engine.DeleteDocument(cmd.Context(), engine.DeleteDocumentRequest{
				DocumentID: ids[0],
				RequestKey: opts.RequestKey,
			})
			if err != nil {
				return out.Fail("delete document failed", err)
			}
			return out.Success(res.Mutations, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted document %d", res.DocumentID)
				if res.Replayed {
					fmt.Fprint(w, " (replayed)")
				}
				fmt.Fprintln(w)
				for _, m := range res.Mutations {
					writeMutation(w, m)
				}
			})
		},
	}
	cmd.Flags().StringVar(&opts.RequestKey, "key", "", "idempotency key")
	return cmd
}

func (o *LineOptions) price() (*decimal.Decimal, error) {
	if o.Price == "" {
		return nil, nil
	}
	p, err := domain.ParseMoney("line", "price", o.Price)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --price", err)
	}
	return &p, nil
}

func (o *LineOptions) runLine(cmd *cobra.Command, fn func(*engine.Engine) (engine.LineResult, error)) error {
	out := o.formatter(cmd)
	rt, err := o.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := fn(rt.engine)
	if err != nil {
		return out.Fail("line mutation rejected", err)
	}
	return out.Success(lineOutput{
		Mutation: res.Mutation,
		Item:     res.Item,
		Document: res.Document,
		Alert:    res.Alert,
		Replayed: res.Replayed,
	}, func(w io.Writer) {
		writeMutation(w, res.Mutation)
		if res.Replayed {
			fmt.Fprintln(w, "  (replayed, nothing changed)")
		}
		fmt.Fprintf(w, "  %s: quantity %d, document %d total %s\n",
			res.Item.Name, res.Item.Quantity, res.Document.ID, domain.FormatMoney(res.Document.Total))
		if res.Alert != nil {
			fmt.Fprintf(w, "  alert %d: %s\n", res.Alert.ID, res.Alert.Notes)
		}
	})
}

type lineOutput struct {
	Mutation domain.Mutation `json:"mutation"`
	Item     domain.Item     `json:"item"`
	Document domain.Document `json:"document"`
	Alert    *domain.Alert   `json:"alert,omitempty"`
	Replayed bool            `json:"replayed"`
}

func writeMutation(w io.Writer, m domain.Mutation) {
	fmt.Fprintf(w, "#%d %s doc=%d item=%d delta=%+d qty %d -> %d", m.Seq, m.Kind, m.DocumentID, m.ItemID,
		m.Delta, m.QuantityBefore, m.QuantityAfter)
	if m.Clamped > 0 {
		fmt.Fprintf(w, " (clamped %d)", m.Clamped)
	}
	if m.AlertTransition != domain.TransitionNone {
		fmt.Fprintf(w, " alert %s", m.AlertTransition)
	}
	fmt.Fprintln(w)
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, len(args))
	for i, a := range args {
		n, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("argument %d: %q is not an integer", i+1, a))
		}
		ids[i] = n
	}
	return ids, nil
}
