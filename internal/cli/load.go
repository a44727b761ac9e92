package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/stockline/internal/catalog"
)

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <catalog.cue|dir>",
		Short: "Load a CUE catalog into the database",
		Long: `Load categories, counterparties, items and documents from a CUE catalog.

Every document line goes through the engine, so stock levels, totals and
alerts come out exactly as if the lines had been entered one by one. A
reconcile pass runs at the end.

Example:
  stockline load --db ./stockline.db ./seed/shop.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, args[0], cmd)
		},
	}
}

func runLoad(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("catalog not found: %s", path))
	}

	cat, err := catalog.LoadFile(path)
	if err != nil {
		_ = out.Error("E_CATALOG", err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid catalog", err)
	}
	out.VerboseLog("catalog compiled: %d items, %d documents", len(cat.Items), len(cat.Documents))

	rt, err := opts.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := catalog.Apply(cmd.Context(), rt.engine, cat, rt.logger)
	if err != nil {
		return out.Fail("load failed", err)
	}
	return out.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "Loaded %d categories, %d counterparties, %d items, %d documents, %d lines\n",
			res.Categories, res.Counterparties, res.Items, res.Documents, res.Lines)
		fmt.Fprintf(w, "Reconciled %d documents, %d corrected\n", res.Reconcile.Scanned, res.Reconcile.Corrected)
	})
}
