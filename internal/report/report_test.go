package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stockline/internal/domain"
	"github.com/roach88/stockline/internal/engine"
	"github.com/roach88/stockline/internal/store"
	"github.com/roach88/stockline/internal/testutil"
)

type fixture struct {
	engine   *engine.Engine
	reporter *Reporter
	tools    domain.Category
	hammer   domain.Item
	saw      domain.Item
	glue     domain.Item
	customer domain.Counterparty
	supplier domain.Counterparty
}

func setupFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	e := engine.New(s, engine.WithClock(testutil.NewDeterministicClock()))

	f := fixture{engine: e, reporter: New(s)}
	f.tools, err = e.CreateCategory(ctx, "Tools")
	require.NoError(t, err)
	f.hammer = createItem(t, e, "Hammer", &f.tools.ID, 10, "12.50")
	f.saw = createItem(t, e, "Saw", &f.tools.ID, 0, "30.00")
	f.glue = createItem(t, e, "Glue", nil, 4, "3.25")

	f.customer, err = e.CreateCounterparty(ctx, domain.Counterparty{Kind: domain.CounterpartyCustomer, Name: "Acme"})
	require.NoError(t, err)
	f.supplier, err = e.CreateCounterparty(ctx, domain.Counterparty{Kind: domain.CounterpartySupplier, Name: "Forge Ltd"})
	require.NoError(t, err)
	return f
}

func createItem(t *testing.T, e *engine.Engine, name string, category *int64, qty int64, price string) domain.Item {
	t.Helper()
	item, err := e.CreateItem(context.Background(), engine.NewItem{
		Name:       name,
		CategoryID: category,
		UnitPrice:  decimal.RequireFromString(price),
		Quantity:   qty,
	})
	require.NoError(t, err)
	return item
}

func createDocument(t *testing.T, e *engine.Engine, kind domain.DocumentKind, cp int64, date time.Time) domain.Document {
	t.Helper()
	doc, err := e.CreateDocument(context.Background(), engine.NewDocument{Kind: kind, CounterpartyID: &cp, Date: date})
	require.NoError(t, err)
	return doc
}

func addLine(t *testing.T, e *engine.Engine, doc, item, qty int64) {
	t.Helper()
	_, err := e.AddLine(context.Background(), engine.AddLineRequest{DocumentID: doc, ItemID: item, Quantity: qty})
	require.NoError(t, err)
}

func TestItemResolvesCategory(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	got, err := f.reporter.Item(ctx, f.hammer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hammer", got.Name)
	require.NotNil(t, got.CategoryName)
	assert.Equal(t, "Tools", *got.CategoryName)
	assert.Equal(t, int64(10), got.Quantity)

	got, err = f.reporter.Item(ctx, f.glue.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryName)

	_, err = f.reporter.Item(ctx, 999)
	assert.True(t, domain.IsNotFound(err))
}

func TestItemsByCategory(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	items, err := f.reporter.ItemsByCategory(ctx, "Tools")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Hammer", items[0].Name)
	assert.Equal(t, "Saw", items[1].Name)

	_, err = f.reporter.ItemsByCategory(ctx, "Garden")
	assert.True(t, domain.IsNotFound(err))

	all, err := f.reporter.Items(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAvailableItemsExcludesEmptyStock(t *testing.T) {
	f := setupFixture(t)

	items, err := f.reporter.AvailableItems(context.Background())
	require.NoError(t, err)
	names := []string{}
	for _, i := range items {
		names = append(names, i.Name)
	}
	assert.Equal(t, []string{"Glue", "Hammer"}, names)
}

func TestStockValueFollowsMutations(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	v, err := f.reporter.StockValue(ctx)
	require.NoError(t, err)
	// 10 x 12.50 + 4 x 3.25
	assert.True(t, decimal.RequireFromString("138.00").Equal(v.Total), "got %s", v.Total)
	assert.Equal(t, int64(14), v.Units)
	assert.Equal(t, 3, v.Items)

	sale := createDocument(t, f.engine, domain.KindSales, f.customer.ID, time.Time{})
	addLine(t, f.engine, sale.ID, f.hammer.ID, 2)

	v, err = f.reporter.StockValue(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("113.00").Equal(v.Total), "got %s", v.Total)
}

func TestCounterpartyHistory(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	jan := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	older := createDocument(t, f.engine, domain.KindSales, f.customer.ID, jan)
	newer := createDocument(t, f.engine, domain.KindSales, f.customer.ID, feb)
	addLine(t, f.engine, older.ID, f.hammer.ID, 1)
	addLine(t, f.engine, newer.ID, f.glue.ID, 2)
	addLine(t, f.engine, newer.ID, f.hammer.ID, 3)

	purchase := createDocument(t, f.engine, domain.KindPurchase, f.supplier.ID, jan)
	addLine(t, f.engine, purchase.ID, f.saw.ID, 5)

	rows, err := f.reporter.CustomerHistory(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, newer.ID, rows[0].DocumentID)
	assert.Equal(t, "Glue", rows[0].ItemName)
	assert.Equal(t, "Hammer", rows[1].ItemName)
	assert.Equal(t, older.ID, rows[2].DocumentID)
	assert.Equal(t, "Acme", rows[0].CounterpartyName)
	assert.True(t, decimal.RequireFromString("37.50").Equal(rows[1].LineValue))
	assert.True(t, jan.Equal(rows[2].Date))

	rows, err = f.reporter.SupplierHistory(ctx, f.supplier.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.KindPurchase, rows[0].DocumentKind)
	assert.Equal(t, int64(5), rows[0].Quantity)

	_, err = f.reporter.SupplierHistory(ctx, f.customer.ID)
	assert.True(t, domain.IsValidation(err))
	_, err = f.reporter.CustomerHistory(ctx, 404)
	assert.True(t, domain.IsNotFound(err))
}

func TestDocumentDetail(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	doc := createDocument(t, f.engine, domain.KindPurchase, f.supplier.ID, time.Time{})
	addLine(t, f.engine, doc.ID, f.saw.ID, 2)
	addLine(t, f.engine, doc.ID, f.hammer.ID, 1)

	got, err := f.reporter.Document(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("72.50").Equal(got.Total))
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "Saw", got.Lines[0].ItemName)
	assert.True(t, decimal.RequireFromString("60.00").Equal(got.Lines[0].LineValue))
	assert.Equal(t, "Hammer", got.Lines[1].ItemName)

	_, err = f.reporter.Document(ctx, 999)
	assert.True(t, domain.IsNotFound(err))
}

func TestAlertsAndJournal(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.engine.UpdateItem(ctx, f.hammer.ID, engine.ItemPatch{ReorderLevel: ptr(int64(5))})
	require.NoError(t, err)
	sale := createDocument(t, f.engine, domain.KindSales, f.customer.ID, time.Time{})
	addLine(t, f.engine, sale.ID, f.hammer.ID, 6)

	open, err := f.reporter.Alerts(ctx, &f.hammer.ID, true)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, domain.AlertKindLowStock, open[0].Kind)

	none, err := f.reporter.Alerts(ctx, &f.glue.ID, false)
	require.NoError(t, err)
	assert.Empty(t, none)

	journal, err := f.reporter.Journal(ctx, &f.hammer.ID)
	require.NoError(t, err)
	require.Len(t, journal, 1)
	assert.Equal(t, int64(-6), journal[0].Delta)
	assert.Equal(t, domain.TransitionOpened, journal[0].AlertTransition)
}

func ptr[T any](v T) *T {
	return &v
}
