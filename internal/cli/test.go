package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/stockline/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool
	Filter string
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Note   string   `json:"note,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult summarises a suite run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r *TestResult) add(s ScenarioResult) {
	r.Scenarios = append(r.Scenarios, s)
	r.Total++
	if s.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run consistency scenarios",
		Long: `Run YAML consistency scenarios against a fresh engine each.

Each scenario's final state is checked against its assertions and its
journal trace against golden/<name>.golden next to the scenario, when that
file exists.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  stockline test ./scenarios
  stockline test ./scenarios --filter "*alert*"
  stockline test ./scenarios --update
  stockline test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose file name matches this glob")

	return cmd
}

func (o *TestOptions) run(cmd *cobra.Command, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	files, err := harness.FindScenarios(dir, o.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	out := o.formatter(cmd)
	result := TestResult{Scenarios: []ScenarioResult{}}
	if len(files) == 0 {
		return out.Success(result, func(w io.Writer) {
			fmt.Fprintln(w, "No scenarios found.")
		})
	}

	// Text mode streams one line per scenario as it finishes.
	var progress io.Writer = io.Discard
	if o.Format != "json" {
		progress = cmd.OutOrStdout()
	}
	for _, file := range files {
		sr := o.check(cmd.Context(), file)
		writeScenarioLine(progress, sr)
		result.add(sr)
	}

	if result.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		if o.Format == "json" {
			if err := out.Error("E_TEST_FAILED", msg, result); err != nil {
				return err
			}
		} else {
			writeSummary(cmd.OutOrStdout(), result)
		}
		return NewExitError(ExitFailure, msg)
	}
	return out.Success(result, func(w io.Writer) {
		writeSummary(w, result)
		fmt.Fprintln(w, "✓ All scenarios passed")
	})
}

// check loads, runs and golden-compares one scenario file.
func (o *TestOptions) check(ctx context.Context, file string) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return failed(filepath.Base(file), fmt.Sprintf("failed to load scenario: %v", err))
	}

	var runOpts []harness.Option
	if o.Verbose {
		if logger, err := o.newLogger(); err == nil {
			runOpts = append(runOpts, harness.WithLogger(logger))
		}
	}
	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		return failed(scenario.Name, fmt.Sprintf("execution failed: %v", err))
	}

	golden := harness.GoldenPath(file, scenario)
	note := ""
	switch {
	case o.Update:
		if err := harness.WriteGolden(golden, scenario, result); err != nil {
			return failed(scenario.Name, fmt.Sprintf("failed to update golden file: %v", err))
		}
		note = "golden updated"
	case fileExists(golden):
		match, err := harness.CompareGolden(golden, scenario, result)
		if err != nil {
			return failed(scenario.Name, fmt.Sprintf("golden comparison failed: %v", err))
		}
		if !match {
			return failed(scenario.Name, "trace does not match golden file (run with --update to regenerate)")
		}
	}

	if !result.Pass {
		return failed(scenario.Name, result.Errors...)
	}
	return ScenarioResult{Name: scenario.Name, Pass: true, Note: note}
}

func failed(name string, errs ...string) ScenarioResult {
	return ScenarioResult{Name: name, Errors: errs}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeScenarioLine(w io.Writer, sr ScenarioResult) {
	if sr.Pass {
		if sr.Note != "" {
			fmt.Fprintf(w, "✓ %s (%s)\n", sr.Name, sr.Note)
			return
		}
		fmt.Fprintf(w, "✓ %s\n", sr.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", sr.Name)
	for _, e := range sr.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func writeSummary(w io.Writer, r TestResult) {
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
}
