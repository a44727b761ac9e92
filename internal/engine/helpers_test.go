package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stockline/internal/domain"
	"github.com/roach88/stockline/internal/store"
	"github.com/roach88/stockline/internal/testutil"
)

// setupTestEngine creates an engine over a fresh temp-file store with a
// deterministic clock and sequential mutation ids.
func setupTestEngine(t *testing.T) *Engine {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s,
		WithClock(testutil.NewDeterministicClock()),
		WithIDGenerator(testutil.NewSequenceIDs("mut")),
	)
}

func mustItem(t *testing.T, e *Engine, name string, qty, reorder int64, price string) domain.Item {
	t.Helper()
	item, err := e.CreateItem(context.Background(), NewItem{
		Name:         name,
		UnitPrice:    decimal.RequireFromString(price),
		Quantity:     qty,
		ReorderLevel: reorder,
	})
	require.NoError(t, err)
	return item
}

func mustDocument(t *testing.T, e *Engine, kind domain.DocumentKind) domain.Document {
	t.Helper()
	doc, err := e.CreateDocument(context.Background(), NewDocument{Kind: kind})
	require.NoError(t, err)
	return doc
}

func mustAdd(t *testing.T, e *Engine, docID, itemID, qty int64) LineResult {
	t.Helper()
	res, err := e.AddLine(context.Background(), AddLineRequest{DocumentID: docID, ItemID: itemID, Quantity: qty})
	require.NoError(t, err)
	return res
}

func itemQuantity(t *testing.T, e *Engine, id int64) int64 {
	t.Helper()
	item, err := e.Store().GetItem(context.Background(), id)
	require.NoError(t, err)
	return item.Quantity
}

func documentTotal(t *testing.T, e *Engine, id int64) decimal.Decimal {
	t.Helper()
	doc, err := e.Store().GetDocument(context.Background(), id)
	require.NoError(t, err)
	return doc.Total
}

func openAlerts(t *testing.T, e *Engine, itemID int64) []domain.Alert {
	t.Helper()
	alerts, err := e.Store().ListAlerts(context.Background(), store.AlertFilter{ItemID: &itemID, OpenOnly: true})
	require.NoError(t, err)
	return alerts
}

func allAlerts(t *testing.T, e *Engine, itemID int64) []domain.Alert {
	t.Helper()
	alerts, err := e.Store().ListAlerts(context.Background(), store.AlertFilter{ItemID: &itemID})
	require.NoError(t, err)
	return alerts
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}
