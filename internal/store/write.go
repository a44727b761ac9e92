package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/roach88/stockline/internal/domain"
)

// Tx is one write transaction. It embeds the same read methods as Store so
// the engine reads the state its own writes produced.
type Tx struct {
	reader
	tx *sqlx.Tx
}

// InsertCategory creates a category and returns its id.
func (t *Tx) InsertCategory(ctx context.Context, name string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, domain.NormalizeName(name))
	if err != nil {
		return 0, mapError("insert category", err)
	}
	return res.LastInsertId()
}

// InsertCounterparty creates a customer or supplier and returns its id.
func (t *Tx) InsertCounterparty(ctx context.Context, cp domain.Counterparty) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO counterparties (kind, name, email, phone, address)
		VALUES (?, ?, ?, ?, ?)
	`, cp.Kind, domain.NormalizeName(cp.Name), cp.Email, cp.Phone, cp.Address)
	if err != nil {
		return 0, mapError("insert counterparty", err)
	}
	return res.LastInsertId()
}

// RenameCategory changes a category's name.
func (t *Tx) RenameCategory(ctx context.Context, id int64, name string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE categories SET name = ? WHERE id = ?`, domain.NormalizeName(name), id)
	if err != nil {
		return mapError("rename category", err)
	}
	return requireRow("rename category", "category", id, res)
}

// DeleteCategory removes a category. Items still in it make the foreign
// key fail; the engine checks first to give a clearer error.
func (t *Tx) DeleteCategory(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return mapError("delete category", err)
	}
	return requireRow("delete category", "category", id, res)
}

// UpdateCounterparty writes name and contact details. Kind never changes.
func (t *Tx) UpdateCounterparty(ctx context.Context, cp domain.Counterparty) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE counterparties SET name = ?, email = ?, phone = ?, address = ?
		WHERE id = ?
	`, domain.NormalizeName(cp.Name), cp.Email, cp.Phone, cp.Address, cp.ID)
	if err != nil {
		return mapError("update counterparty", err)
	}
	return requireRow("update counterparty", "counterparty", cp.ID, res)
}

// DeleteCounterparty removes a customer or supplier.
func (t *Tx) DeleteCounterparty(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM counterparties WHERE id = ?`, id)
	if err != nil {
		return mapError("delete counterparty", err)
	}
	return requireRow("delete counterparty", "counterparty", id, res)
}

// InsertItem creates an item at version 1. Quantity is taken from
// InitialQuantity.
func (t *Tx) InsertItem(ctx context.Context, item domain.Item) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO items
		(name, manufacturer, category_id, unit_price, quantity, initial_quantity, reorder_level, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
	`,
		domain.NormalizeName(item.Name),
		item.Manufacturer,
		item.CategoryID,
		item.UnitPrice,
		item.InitialQuantity,
		item.InitialQuantity,
		item.ReorderLevel,
		item.CreatedAt,
	)
	if err != nil {
		return 0, mapError("insert item", err)
	}
	return res.LastInsertId()
}

// UpdateItemAttributes writes the non-quantity columns of item, conditioned
// on item.Version. It never touches quantity.
func (t *Tx) UpdateItemAttributes(ctx context.Context, item domain.Item) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE items
		SET name = ?, manufacturer = ?, category_id = ?, unit_price = ?, reorder_level = ?,
		    version = version + 1
		WHERE id = ? AND version = ?
	`,
		domain.NormalizeName(item.Name),
		item.Manufacturer,
		item.CategoryID,
		item.UnitPrice,
		item.ReorderLevel,
		item.ID,
		item.Version,
	)
	return checkVersioned("update item", res, err)
}

// SetItemQuantity stores a new on-hand quantity, conditioned on version.
func (t *Tx) SetItemQuantity(ctx context.Context, id, version, quantity int64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE items SET quantity = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, quantity, id, version)
	return checkVersioned("set item quantity", res, err)
}

// InsertDocument creates a document with a zero total at version 1.
func (t *Tx) InsertDocument(ctx context.Context, doc domain.Document) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO documents (kind, counterparty_id, doc_date, status, total, version, created_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
	`, doc.Kind, doc.CounterpartyID, doc.Date, doc.Status, decimal.Zero, doc.CreatedAt)
	if err != nil {
		return 0, mapError("insert document", err)
	}
	return res.LastInsertId()
}

// SetDocumentTotal stores a resummed total, conditioned on version.
func (t *Tx) SetDocumentTotal(ctx context.Context, id, version int64, total decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE documents SET total = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, total, id, version)
	return checkVersioned("set document total", res, err)
}

// DeleteDocument removes a document. Any lines still present cascade; the
// engine removes them first so their reactions run.
func (t *Tx) DeleteDocument(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return mapError("delete document", err)
	}
	return requireRow("delete document", "document", id, res)
}

// InsertLine appends a line to its document and returns the assigned seq.
func (t *Tx) InsertLine(ctx context.Context, line domain.LineEntry) (int64, error) {
	var seq int64
	err := t.tx.GetContext(ctx, &seq, `
		INSERT INTO line_entries (document_id, item_id, quantity, unit_price, seq)
		VALUES (?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM line_entries WHERE document_id = ?))
		RETURNING seq
	`, line.DocumentID, line.ItemID, line.Quantity, line.UnitPrice, line.DocumentID)
	if err != nil {
		return 0, mapError("insert line", err)
	}
	return seq, nil
}

// UpdateLine rewrites quantity and unit price of an existing line.
func (t *Tx) UpdateLine(ctx context.Context, line domain.LineEntry) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE line_entries SET quantity = ?, unit_price = ?
		WHERE document_id = ? AND item_id = ?
	`, line.Quantity, line.UnitPrice, line.DocumentID, line.ItemID)
	if err != nil {
		return mapError("update line", err)
	}
	return requireRow("update line", "line", fmt.Sprintf("%d/%d", line.DocumentID, line.ItemID), res)
}

// DeleteLine removes the line for (documentID, itemID).
func (t *Tx) DeleteLine(ctx context.Context, documentID, itemID int64) error {
	res, err := t.tx.ExecContext(ctx, `
		DELETE FROM line_entries WHERE document_id = ? AND item_id = ?
	`, documentID, itemID)
	if err != nil {
		return mapError("delete line", err)
	}
	return requireRow("delete line", "line", fmt.Sprintf("%d/%d", documentID, itemID), res)
}

// InsertAlert opens an alert. The partial UNIQUE index rejects a second
// open alert for the same item with a CONFLICT error.
func (t *Tx) InsertAlert(ctx context.Context, a domain.Alert) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO alerts (item_id, kind, resolved, created_at, notes)
		VALUES (?, ?, 0, ?, ?)
	`, a.ItemID, a.Kind, a.CreatedAt, a.Notes)
	if err != nil {
		return 0, mapError("insert alert", err)
	}
	return res.LastInsertId()
}

// ResolveAlert marks an open alert resolved and replaces its notes.
func (t *Tx) ResolveAlert(ctx context.Context, id int64, resolvedAt time.Time, notes string) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE alerts SET resolved = 1, resolved_at = ?, notes = ?
		WHERE id = ? AND resolved = 0
	`, resolvedAt, notes, id)
	if err != nil {
		return mapError("resolve alert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("resolve alert", err)
	}
	if n == 0 {
		return domain.Conflict("resolve alert", fmt.Sprintf("alert %d is not open", id), nil)
	}
	return nil
}

// InsertRequest records an idempotency key. A key recorded concurrently by
// another transaction surfaces as CONFLICT.
func (t *Tx) InsertRequest(ctx context.Context, req Request, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO requests (request_key, operation, fingerprint, created_at)
		VALUES (?, ?, ?, ?)
	`, req.Key, req.Operation, req.Fingerprint, at)
	if err != nil {
		return mapError("insert request", err)
	}
	return nil
}

// AppendMutation journals a committed reaction cycle and returns the seq
// the store assigned. Seq is allocated inside the write transaction, so it
// is gap-free and totally ordered across processes sharing the database.
func (t *Tx) AppendMutation(ctx context.Context, m domain.Mutation) (int64, error) {
	var seq int64
	err := t.tx.GetContext(ctx, &seq, `
		INSERT INTO mutations
		(id, seq, kind, document_id, document_kind, item_id, delta,
		 quantity_before, quantity_after, clamped, total_before, total_after,
		 alert_transition, alert_id, request_key, fingerprint, created_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM mutations), ?, ?, ?, ?, ?,
		        ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq
	`,
		m.ID,
		m.Kind,
		m.DocumentID,
		m.DocumentKind,
		m.ItemID,
		m.Delta,
		m.QuantityBefore,
		m.QuantityAfter,
		m.Clamped,
		m.TotalBefore,
		m.TotalAfter,
		m.AlertTransition,
		m.AlertID,
		m.RequestKey,
		m.Fingerprint,
		m.CreatedAt,
	)
	if err != nil {
		return 0, mapError("append mutation", err)
	}
	return seq, nil
}

// checkVersioned turns a zero-row optimistic update into CONFLICT.
func checkVersioned(op string, res sql.Result, err error) error {
	if err != nil {
		return mapError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(op, err)
	}
	if n == 0 {
		return domain.Conflict(op, "record changed since it was read", nil)
	}
	return nil
}

func requireRow(op, entity string, id any, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(op, err)
	}
	if n == 0 {
		return domain.NotFound(op, entity, id)
	}
	return nil
}
