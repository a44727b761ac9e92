// Package report holds the read-only projections the presentation layer
// consumes: item lookups, category listings, stock valuation, and
// customer/supplier history. Nothing here writes.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/roach88/stockline/internal/domain"
	"github.com/roach88/stockline/internal/store"
)

// Reporter runs read-model queries against the entity store.
type Reporter struct {
	store *store.Store
	db    *sqlx.DB
}

// New creates a Reporter over s.
func New(s *store.Store) *Reporter {
	return &Reporter{store: s, db: s.DB()}
}

// ItemDetail is an item with its category name resolved.
type ItemDetail struct {
	domain.Item
	CategoryName *string `db:"category_name" json:"category_name,omitempty"`
}

const itemDetailQuery = `
	SELECT i.id, i.name, i.manufacturer, i.category_id, i.unit_price, i.quantity,
	       i.initial_quantity, i.reorder_level, i.version, i.created_at,
	       c.name AS category_name
	FROM items i
	LEFT JOIN categories c ON c.id = i.category_id`

// Item resolves one item's quantity, price and category.
func (r *Reporter) Item(ctx context.Context, id int64) (ItemDetail, error) {
	items := []ItemDetail{}
	if err := r.db.SelectContext(ctx, &items, itemDetailQuery+` WHERE i.id = ?`, id); err != nil {
		return ItemDetail{}, fmt.Errorf("item detail: %w", err)
	}
	if len(items) == 0 {
		return ItemDetail{}, domain.NotFound("item detail", "item", id)
	}
	return items[0], nil
}

// Items lists every item ordered by name.
func (r *Reporter) Items(ctx context.Context) ([]ItemDetail, error) {
	items := []ItemDetail{}
	if err := r.db.SelectContext(ctx, &items, itemDetailQuery+` ORDER BY i.name ASC, i.id ASC`); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// ItemsByCategory lists the items of one category, by name. An unknown
// category is NOT_FOUND rather than an empty list.
func (r *Reporter) ItemsByCategory(ctx context.Context, category string) ([]ItemDetail, error) {
	cat, err := r.store.GetCategoryByName(ctx, category)
	if err != nil {
		return nil, err
	}
	items := []ItemDetail{}
	err = r.db.SelectContext(ctx, &items, itemDetailQuery+`
		WHERE i.category_id = ?
		ORDER BY i.name ASC, i.id ASC`, cat.ID)
	if err != nil {
		return nil, fmt.Errorf("items by category: %w", err)
	}
	return items, nil
}

// AvailableItems lists items with stock on hand.
func (r *Reporter) AvailableItems(ctx context.Context) ([]ItemDetail, error) {
	items := []ItemDetail{}
	err := r.db.SelectContext(ctx, &items, itemDetailQuery+`
		WHERE i.quantity > 0
		ORDER BY i.name ASC, i.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("available items: %w", err)
	}
	return items, nil
}

// StockValuation is the total value of stock on hand.
type StockValuation struct {
	Total decimal.Decimal `json:"total"`
	Items int             `json:"items"`
	Units int64           `json:"units"`
}

// StockValue sums quantity x unit price over all items. It is computed on
// every call from the item rows, never cached. Money stays decimal; SQLite
// SUM over TEXT would go through floating point.
func (r *Reporter) StockValue(ctx context.Context) (StockValuation, error) {
	items, err := r.store.ListItems(ctx)
	if err != nil {
		return StockValuation{}, err
	}
	v := StockValuation{Total: decimal.Zero, Items: len(items)}
	for _, item := range items {
		v.Total = v.Total.Add(item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)))
		v.Units += item.Quantity
	}
	return v, nil
}

// HistoryRow is one line of a counterparty's document history.
type HistoryRow struct {
	DocumentID       int64                 `db:"document_id" json:"document_id"`
	DocumentKind     domain.DocumentKind   `db:"document_kind" json:"document_kind"`
	Date             time.Time             `db:"doc_date" json:"date"`
	Status           domain.DocumentStatus `db:"status" json:"status"`
	CounterpartyID   int64                 `db:"counterparty_id" json:"counterparty_id"`
	CounterpartyName string                `db:"counterparty_name" json:"counterparty_name"`
	ItemID           int64                 `db:"item_id" json:"item_id"`
	ItemName         string                `db:"item_name" json:"item_name"`
	Quantity         int64                 `db:"quantity" json:"quantity"`
	UnitPrice        decimal.Decimal       `db:"unit_price" json:"unit_price"`
	LineValue        decimal.Decimal       `db:"-" json:"line_value"`
}

// History returns the document lines of a customer (sales) or supplier
// (purchases), newest document first, lines in insertion order.
func (r *Reporter) History(ctx context.Context, counterpartyID int64) ([]HistoryRow, error) {
	cp, err := r.store.GetCounterparty(ctx, counterpartyID)
	if err != nil {
		return nil, err
	}
	kind := domain.KindSales
	if cp.Kind == domain.CounterpartySupplier {
		kind = domain.KindPurchase
	}

	rows := []HistoryRow{}
	err = r.db.SelectContext(ctx, &rows, `
		SELECT d.id AS document_id, d.kind AS document_kind, d.doc_date, d.status,
		       cp.id AS counterparty_id, cp.name AS counterparty_name,
		       i.id AS item_id, i.name AS item_name,
		       l.quantity, l.unit_price
		FROM documents d
		JOIN counterparties cp ON cp.id = d.counterparty_id
		JOIN line_entries l ON l.document_id = d.id
		JOIN items i ON i.id = l.item_id
		WHERE d.counterparty_id = ? AND d.kind = ?
		ORDER BY d.doc_date DESC, d.id DESC, l.seq ASC
	`, counterpartyID, kind)
	if err != nil {
		return nil, fmt.Errorf("counterparty history: %w", err)
	}
	for i := range rows {
		rows[i].LineValue = rows[i].UnitPrice.Mul(decimal.NewFromInt(rows[i].Quantity))
	}
	return rows, nil
}

// CustomerHistory is History restricted to customers.
func (r *Reporter) CustomerHistory(ctx context.Context, customerID int64) ([]HistoryRow, error) {
	return r.historyOf(ctx, customerID, domain.CounterpartyCustomer)
}

// SupplierHistory is History restricted to suppliers.
func (r *Reporter) SupplierHistory(ctx context.Context, supplierID int64) ([]HistoryRow, error) {
	return r.historyOf(ctx, supplierID, domain.CounterpartySupplier)
}

func (r *Reporter) historyOf(ctx context.Context, id int64, want domain.CounterpartyKind) ([]HistoryRow, error) {
	cp, err := r.store.GetCounterparty(ctx, id)
	if err != nil {
		return nil, err
	}
	if cp.Kind != want {
		return nil, domain.Validation("counterparty history", "counterparty_id", "counterparty %d is a %s, not a %s", id, cp.Kind, want)
	}
	return r.History(ctx, id)
}

// LineDetail is a document line with its item name and value.
type LineDetail struct {
	domain.LineEntry
	ItemName  string          `db:"item_name" json:"item_name"`
	LineValue decimal.Decimal `db:"-" json:"line_value"`
}

// DocumentDetail is a document with its lines in insertion order.
type DocumentDetail struct {
	domain.Document
	Lines []LineDetail `json:"lines"`
}

// Document returns one document with its lines.
func (r *Reporter) Document(ctx context.Context, id int64) (DocumentDetail, error) {
	doc, err := r.store.GetDocument(ctx, id)
	if err != nil {
		return DocumentDetail{}, err
	}
	lines := []LineDetail{}
	err = r.db.SelectContext(ctx, &lines, `
		SELECT l.document_id, l.item_id, l.quantity, l.unit_price, l.seq, i.name AS item_name
		FROM line_entries l
		JOIN items i ON i.id = l.item_id
		WHERE l.document_id = ?
		ORDER BY l.seq ASC, l.item_id ASC
	`, id)
	if err != nil {
		return DocumentDetail{}, fmt.Errorf("document lines: %w", err)
	}
	for i := range lines {
		lines[i].LineValue = lines[i].LineEntry.LineValue()
	}
	return DocumentDetail{Document: doc, Lines: lines}, nil
}

// Alerts lists alerts, optionally for one item and optionally open only.
func (r *Reporter) Alerts(ctx context.Context, itemID *int64, openOnly bool) ([]domain.Alert, error) {
	return r.store.ListAlerts(ctx, store.AlertFilter{ItemID: itemID, OpenOnly: openOnly})
}

// Journal lists mutation journal records, optionally for one item.
func (r *Reporter) Journal(ctx context.Context, itemID *int64) ([]domain.Mutation, error) {
	return r.store.ListMutations(ctx, store.MutationFilter{ItemID: itemID})
}
