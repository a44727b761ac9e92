package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/stockline/internal/domain"
)

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// reader holds the point lookups and listings shared by Store and Tx.
// Inside a Tx they observe the transaction's own uncommitted writes.
type reader struct {
	q queryer
}

const itemColumns = `id, name, manufacturer, category_id, unit_price, quantity,
	initial_quantity, reorder_level, version, created_at`

const documentColumns = `id, kind, counterparty_id, doc_date, status, total, version, created_at`

const alertColumns = `id, item_id, kind, resolved, created_at, resolved_at, notes`

const mutationColumns = `id, seq, kind, document_id, document_kind, item_id, delta,
	quantity_before, quantity_after, clamped, total_before, total_after,
	alert_transition, alert_id, request_key, fingerprint, created_at`

// GetItem returns the item with the given id.
func (r reader) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	var item domain.Item
	err := r.q.GetContext(ctx, &item, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	if err != nil {
		return domain.Item{}, notFound("get item", "item", id, err)
	}
	return item, nil
}

// ListItems returns every item ordered by id.
func (r reader) ListItems(ctx context.Context) ([]domain.Item, error) {
	items := []domain.Item{}
	if err := r.q.SelectContext(ctx, &items, `SELECT `+itemColumns+` FROM items ORDER BY id ASC`); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// GetCategory returns the category with the given id.
func (r reader) GetCategory(ctx context.Context, id int64) (domain.Category, error) {
	var c domain.Category
	if err := r.q.GetContext(ctx, &c, `SELECT id, name FROM categories WHERE id = ?`, id); err != nil {
		return domain.Category{}, notFound("get category", "category", id, err)
	}
	return c, nil
}

// GetCategoryByName looks a category up by its normalized name.
func (r reader) GetCategoryByName(ctx context.Context, name string) (domain.Category, error) {
	name = domain.NormalizeName(name)
	var c domain.Category
	if err := r.q.GetContext(ctx, &c, `SELECT id, name FROM categories WHERE name = ?`, name); err != nil {
		return domain.Category{}, notFound("get category", "category", name, err)
	}
	return c, nil
}

// ListCategories returns every category ordered by name.
func (r reader) ListCategories(ctx context.Context) ([]domain.Category, error) {
	cats := []domain.Category{}
	if err := r.q.SelectContext(ctx, &cats, `SELECT id, name FROM categories ORDER BY name ASC, id ASC`); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// GetCounterparty returns the customer or supplier with the given id.
func (r reader) GetCounterparty(ctx context.Context, id int64) (domain.Counterparty, error) {
	var cp domain.Counterparty
	err := r.q.GetContext(ctx, &cp, `
		SELECT id, kind, name, email, phone, address
		FROM counterparties WHERE id = ?
	`, id)
	if err != nil {
		return domain.Counterparty{}, notFound("get counterparty", "counterparty", id, err)
	}
	return cp, nil
}

// CountCategoryItems returns how many items are filed under a category.
func (r reader) CountCategoryItems(ctx context.Context, categoryID int64) (int, error) {
	var n int
	if err := r.q.GetContext(ctx, &n, `SELECT COUNT(*) FROM items WHERE category_id = ?`, categoryID); err != nil {
		return 0, fmt.Errorf("count category items: %w", err)
	}
	return n, nil
}

// CountCounterpartyDocuments returns how many documents reference a
// counterparty.
func (r reader) CountCounterpartyDocuments(ctx context.Context, counterpartyID int64) (int, error) {
	var n int
	if err := r.q.GetContext(ctx, &n, `SELECT COUNT(*) FROM documents WHERE counterparty_id = ?`, counterpartyID); err != nil {
		return 0, fmt.Errorf("count counterparty documents: %w", err)
	}
	return n, nil
}

// GetDocument returns the document with the given id.
func (r reader) GetDocument(ctx context.Context, id int64) (domain.Document, error) {
	var doc domain.Document
	err := r.q.GetContext(ctx, &doc, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	if err != nil {
		return domain.Document{}, notFound("get document", "document", id, err)
	}
	return doc, nil
}

// ListDocumentIDs returns every document id in ascending order.
func (r reader) ListDocumentIDs(ctx context.Context) ([]int64, error) {
	ids := []int64{}
	if err := r.q.SelectContext(ctx, &ids, `SELECT id FROM documents ORDER BY id ASC`); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return ids, nil
}

// GetLine returns the line for (documentID, itemID).
func (r reader) GetLine(ctx context.Context, documentID, itemID int64) (domain.LineEntry, error) {
	var line domain.LineEntry
	err := r.q.GetContext(ctx, &line, `
		SELECT document_id, item_id, quantity, unit_price, seq
		FROM line_entries
		WHERE document_id = ? AND item_id = ?
	`, documentID, itemID)
	if err != nil {
		return domain.LineEntry{}, notFound("get line", "line", fmt.Sprintf("%d/%d", documentID, itemID), err)
	}
	return line, nil
}

// ListLines returns a document's lines in insertion order.
func (r reader) ListLines(ctx context.Context, documentID int64) ([]domain.LineEntry, error) {
	lines := []domain.LineEntry{}
	err := r.q.SelectContext(ctx, &lines, `
		SELECT document_id, item_id, quantity, unit_price, seq
		FROM line_entries
		WHERE document_id = ?
		ORDER BY seq ASC, item_id ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}
	return lines, nil
}

// ItemLineTotals is the raw sum of line quantities referencing one item,
// split by document kind.
type ItemLineTotals struct {
	ItemID    int64 `db:"item_id"`
	Purchased int64 `db:"purchased"`
	Sold      int64 `db:"sold"`
}

// SumLineQuantities returns per-item purchase and sales line sums for every
// item, including items with no lines.
func (r reader) SumLineQuantities(ctx context.Context) ([]ItemLineTotals, error) {
	totals := []ItemLineTotals{}
	err := r.q.SelectContext(ctx, &totals, `
		SELECT i.id AS item_id,
		       COALESCE(SUM(CASE WHEN d.kind = 'purchase' THEN l.quantity END), 0) AS purchased,
		       COALESCE(SUM(CASE WHEN d.kind = 'sales' THEN l.quantity END), 0) AS sold
		FROM items i
		LEFT JOIN line_entries l ON l.item_id = i.id
		LEFT JOIN documents d ON d.id = l.document_id
		GROUP BY i.id
		ORDER BY i.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sum line quantities: %w", err)
	}
	return totals, nil
}

// OpenAlert returns the item's open alert, or nil if it has none.
func (r reader) OpenAlert(ctx context.Context, itemID int64) (*domain.Alert, error) {
	var a domain.Alert
	err := r.q.GetContext(ctx, &a, `
		SELECT `+alertColumns+` FROM alerts
		WHERE item_id = ? AND resolved = 0
	`, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open alert: %w", err)
	}
	return &a, nil
}

// AlertFilter narrows ListAlerts. Zero value lists everything.
type AlertFilter struct {
	ItemID   *int64
	OpenOnly bool
}

// ListAlerts returns alerts ordered by id.
func (r reader) ListAlerts(ctx context.Context, f AlertFilter) ([]domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1 = 1`
	var args []any
	if f.ItemID != nil {
		query += ` AND item_id = ?`
		args = append(args, *f.ItemID)
	}
	if f.OpenOnly {
		query += ` AND resolved = 0`
	}
	query += ` ORDER BY id ASC`

	alerts := []domain.Alert{}
	if err := r.q.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// Request is a recorded idempotency key.
type Request struct {
	Key         string `db:"request_key"`
	Operation   string `db:"operation"`
	Fingerprint string `db:"fingerprint"`
}

// GetRequest returns the recorded request for key, or nil if the key is new.
func (r reader) GetRequest(ctx context.Context, key string) (*Request, error) {
	var req Request
	err := r.q.GetContext(ctx, &req, `
		SELECT request_key, operation, fingerprint FROM requests WHERE request_key = ?
	`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return &req, nil
}

// MutationFilter narrows ListMutations. Zero value lists the whole journal.
type MutationFilter struct {
	ItemID     *int64
	DocumentID *int64
	RequestKey *string
}

// ListMutations returns journal records in seq order.
func (r reader) ListMutations(ctx context.Context, f MutationFilter) ([]domain.Mutation, error) {
	query := `SELECT ` + mutationColumns + ` FROM mutations WHERE 1 = 1`
	var args []any
	if f.ItemID != nil {
		query += ` AND item_id = ?`
		args = append(args, *f.ItemID)
	}
	if f.DocumentID != nil {
		query += ` AND document_id = ?`
		args = append(args, *f.DocumentID)
	}
	if f.RequestKey != nil {
		query += ` AND request_key = ?`
		args = append(args, *f.RequestKey)
	}
	query += ` ORDER BY seq ASC`

	muts := []domain.Mutation{}
	if err := r.q.SelectContext(ctx, &muts, query, args...); err != nil {
		return nil, fmt.Errorf("list mutations: %w", err)
	}
	return muts, nil
}

// ClampTotals returns the journaled clamp amount per item. Items that were
// never clamped are absent.
func (r reader) ClampTotals(ctx context.Context) (map[int64]int64, error) {
	var rows []struct {
		ItemID  int64 `db:"item_id"`
		Clamped int64 `db:"clamped"`
	}
	err := r.q.SelectContext(ctx, &rows, `
		SELECT item_id, SUM(clamped) AS clamped
		FROM mutations
		WHERE clamped <> 0
		GROUP BY item_id
		ORDER BY item_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("clamp totals: %w", err)
	}
	out := make(map[int64]int64, len(rows))
	for _, row := range rows {
		out[row.ItemID] = row.Clamped
	}
	return out, nil
}
