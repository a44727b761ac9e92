package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roach88/stockline/internal/catalog"
	"github.com/roach88/stockline/internal/config"
	"github.com/roach88/stockline/internal/engine"
	"github.com/roach88/stockline/internal/report"
)

const shopCatalog = "../catalog/testdata/shop.cue"

// cliEnv runs root commands against one temp database.
type cliEnv struct {
	t  *testing.T
	db string
}

func newCLIEnv(t *testing.T) *cliEnv {
	return &cliEnv{t: t, db: filepath.Join(t.TempDir(), "cli.db")}
}

// root builds a root command with env-only config and a silent logger.
func (c *cliEnv) root(args ...string) (*cobra.Command, *bytes.Buffer) {
	cmd := newRootCommand(&RootOptions{Config: config.LoadEnv(), logger: zap.NewNop()})
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--db", c.db}, args...))
	return cmd, buf
}

func (c *cliEnv) run(args ...string) (string, error) {
	c.t.Helper()
	cmd, buf := c.root(args...)
	err := cmd.Execute()
	return buf.String(), err
}

func (c *cliEnv) mustJSON(v any, args ...string) {
	c.t.Helper()
	out, err := c.run(append([]string{"--format", "json"}, args...)...)
	require.NoError(c.t, err, out)
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(c.t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(c.t, "ok", resp.Status)
	require.NoError(c.t, json.Unmarshal(resp.Data, v))
}

func (c *cliEnv) itemIDs() map[string]int64 {
	c.t.Helper()
	var items []report.ItemDetail
	c.mustJSON(&items, "report", "items")
	ids := map[string]int64{}
	for _, it := range items {
		ids[it.Name] = it.ID
	}
	return ids
}

func TestLoadCommand(t *testing.T) {
	env := newCLIEnv(t)

	var res catalog.Result
	env.mustJSON(&res, "load", shopCatalog)
	assert.Equal(t, 2, res.Items)
	assert.Equal(t, 3, res.Lines)
	assert.Equal(t, 2, res.Reconcile.Scanned)

	var val report.StockValuation
	env.mustJSON(&val, "report", "stock-value")
	assert.True(t, decimal.RequireFromString("493.75").Equal(val.Total), "total = %s", val.Total)
	assert.Equal(t, int64(85), val.Units)

	out, err := env.run("report", "alerts", "--open")
	require.NoError(t, err)
	assert.Contains(t, out, "low stock: quantity 40 at or below reorder level 50")
}

func TestLoadCommandMissingFile(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run("load", "/nonexistent/shop.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLineCommands(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run("load", shopCatalog)
	require.NoError(t, err)
	ids := env.itemIDs()
	para := ids["Paracetamol 500mg"]

	// Document 1 is the purchase from MedSupply.
	out, err := env.run("line", "add", "1", fmt.Sprint(para), "11", "--price", "2.00", "--key", "restock-1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "qty 40 -> 51")
	assert.Contains(t, out, "alert resolved")

	out, err = env.run("line", "add", "1", fmt.Sprint(para), "11", "--price", "2.00", "--key", "restock-1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "replayed")

	out, err = env.run("--format", "json", "line", "add", "1", fmt.Sprint(para), "5")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `"code": "VALIDATION"`)

	out, err = env.run("line", "update", "1", fmt.Sprint(para), "--quantity", "1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "qty 51 -> 41")
	assert.Contains(t, out, "alert opened")

	out, err = env.run("line", "remove", "1", fmt.Sprint(para))
	require.NoError(t, err, out)
	assert.Contains(t, out, "qty 41 -> 40")

	_, err = env.run("line", "add", "one", "1", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDeleteDocumentCommand(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run("load", shopCatalog)
	require.NoError(t, err)

	out, err := env.run("line", "delete-document", "2")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Deleted document 2")
	assert.Contains(t, out, "qty 40 -> 200")

	_, err = env.run("report", "document", "2")
	require.Error(t, err)
}

func TestReconcileAndAuditCommands(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run("load", shopCatalog)
	require.NoError(t, err)

	var rep engine.ReconcileReport
	env.mustJSON(&rep, "reconcile")
	assert.Equal(t, 2, rep.Scanned)
	assert.Zero(t, rep.Corrected)

	var audit engine.AuditReport
	env.mustJSON(&audit, "audit")
	assert.Len(t, audit.Items, 2)
	assert.Zero(t, audit.Drifted)

	out, err := env.run("audit", "--fail-on-drift")
	require.NoError(t, err)
	assert.Contains(t, out, "0 of 2 items drifted")
}

func TestReportCommands(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run("load", shopCatalog)
	require.NoError(t, err)

	out, err := env.run("report", "items", "--category", "Antibiotics")
	require.NoError(t, err)
	assert.Contains(t, out, "Amoxicillin 250mg")
	assert.NotContains(t, out, "Paracetamol")

	out, err = env.run("report", "document", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "total 443.75")
	assert.Contains(t, out, "Paracetamol 500mg")

	var rows []report.HistoryRow
	env.mustJSON(&rows, "report", "history", "2")
	assert.Len(t, rows, 2)
	env.mustJSON(&rows, "report", "history", "2", "--as", "customer")
	assert.Len(t, rows, 2)

	out, err = env.run("report", "history", "2", "--as", "supplier")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "VALIDATION")

	_, err = env.run("report", "history", "2", "--as", "vendor")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err = env.run("report", "available")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "\n"), "header plus two items")
}

func TestServeCommand(t *testing.T) {
	env := newCLIEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	cmd, buf := env.root("serve", "--addr", "127.0.0.1:0")
	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, buf.String(), "Listening on 127.0.0.1:")
}
