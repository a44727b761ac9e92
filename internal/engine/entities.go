package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/roach88/stockline/internal/domain"
	"github.com/roach88/stockline/internal/store"
)

// NewItem describes an item to create. Quantity is the initial stock, the
// only time a caller sets quantity directly.
type NewItem struct {
	Name         string
	Manufacturer string
	CategoryID   *int64
	UnitPrice    decimal.Decimal
	Quantity     int64
	ReorderLevel int64
}

// ItemPatch changes item attributes. Nil fields are left alone. Quantity is
// deliberately absent: it moves only through line entries.
type ItemPatch struct {
	Name         *string
	Manufacturer *string
	CategoryID   *int64
	UnitPrice    *decimal.Decimal
	ReorderLevel *int64
}

// CounterpartyPatch changes a counterparty's name or contact details. Nil
// fields are left alone. Kind is absent: documents were checked against it.
type CounterpartyPatch struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

// NewDocument describes a document to create. A zero Date means today and
// an empty Status means completed.
type NewDocument struct {
	Kind           domain.DocumentKind
	CounterpartyID *int64
	Date           time.Time
	Status         domain.DocumentStatus
}

// DeleteDocumentRequest deletes a document and all of its lines.
type DeleteDocumentRequest struct {
	DocumentID int64
	RequestKey string
}

// DeleteDocumentResult lists the journal records, one per removed line in
// insertion order.
type DeleteDocumentResult struct {
	DocumentID int64
	Mutations  []domain.Mutation
	Replayed   bool
}

// CreateCategory creates a category.
func (e *Engine) CreateCategory(ctx context.Context, name string) (domain.Category, error) {
	const op = "create category"
	if err := domain.ValidateName(op, "name", name); err != nil {
		return domain.Category{}, err
	}
	var cat domain.Category
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		id, err := tx.InsertCategory(ctx, name)
		if err != nil {
			return err
		}
		cat = domain.Category{ID: id, Name: domain.NormalizeName(name)}
		return nil
	})
	return cat, err
}

// CreateCounterparty creates a customer or supplier.
func (e *Engine) CreateCounterparty(ctx context.Context, cp domain.Counterparty) (domain.Counterparty, error) {
	const op = "create counterparty"
	if !cp.Kind.Valid() {
		return domain.Counterparty{}, domain.Validation(op, "kind", "unknown counterparty kind %q", cp.Kind)
	}
	if err := domain.ValidateName(op, "name", cp.Name); err != nil {
		return domain.Counterparty{}, err
	}
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		id, err := tx.InsertCounterparty(ctx, cp)
		if err != nil {
			return err
		}
		cp.ID = id
		cp.Name = domain.NormalizeName(cp.Name)
		return nil
	})
	return cp, err
}

// RenameCategory renames a category. Names stay unique.
func (e *Engine) RenameCategory(ctx context.Context, id int64, name string) (domain.Category, error) {
	const op = "rename category"
	if err := domain.ValidateName(op, "name", name); err != nil {
		return domain.Category{}, err
	}
	var cat domain.Category
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.RenameCategory(ctx, id, name); err != nil {
			return err
		}
		var err error
		cat, err = tx.GetCategory(ctx, id)
		return err
	})
	return cat, err
}

// DeleteCategory removes a category that no item is filed under.
func (e *Engine) DeleteCategory(ctx context.Context, id int64) error {
	const op = "delete category"
	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetCategory(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountCategoryItems(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.Validation(op, "category_id", "category %d still holds %d item(s)", id, n)
		}
		return tx.DeleteCategory(ctx, id)
	})
}

// UpdateCounterparty changes a counterparty's name or contact details.
func (e *Engine) UpdateCounterparty(ctx context.Context, id int64, patch CounterpartyPatch) (domain.Counterparty, error) {
	const op = "update counterparty"
	if patch.Name != nil {
		if err := domain.ValidateName(op, "name", *patch.Name); err != nil {
			return domain.Counterparty{}, err
		}
	}
	var cp domain.Counterparty
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		cur, err := tx.GetCounterparty(ctx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			cur.Name = *patch.Name
		}
		if patch.Email != nil {
			cur.Email = *patch.Email
		}
		if patch.Phone != nil {
			cur.Phone = *patch.Phone
		}
		if patch.Address != nil {
			cur.Address = *patch.Address
		}
		if err := tx.UpdateCounterparty(ctx, cur); err != nil {
			return err
		}
		cp, err = tx.GetCounterparty(ctx, id)
		return err
	})
	return cp, err
}

// DeleteCounterparty removes a customer or supplier that no document
// references.
func (e *Engine) DeleteCounterparty(ctx context.Context, id int64) error {
	const op = "delete counterparty"
	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetCounterparty(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountCounterpartyDocuments(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.Validation(op, "counterparty_id", "counterparty %d is referenced by %d document(s)", id, n)
		}
		return tx.DeleteCounterparty(ctx, id)
	})
}

// CreateItem creates an item with its initial stock. No alert is evaluated:
// alerts respond to quantity transitions, and creation is not one.
func (e *Engine) CreateItem(ctx context.Context, in NewItem) (domain.Item, error) {
	const op = "create item"
	if err := domain.ValidateName(op, "name", in.Name); err != nil {
		return domain.Item{}, err
	}
	if err := domain.ValidatePrice(op, "unit_price", in.UnitPrice); err != nil {
		return domain.Item{}, err
	}
	if err := domain.ValidateStockQuantity(op, "quantity", in.Quantity); err != nil {
		return domain.Item{}, err
	}
	if err := domain.ValidateStockQuantity(op, "reorder_level", in.ReorderLevel); err != nil {
		return domain.Item{}, err
	}

	var item domain.Item
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		if in.CategoryID != nil {
			if _, err := tx.GetCategory(ctx, *in.CategoryID); err != nil {
				return err
			}
		}
		id, err := tx.InsertItem(ctx, domain.Item{
			Name:            in.Name,
			Manufacturer:    in.Manufacturer,
			CategoryID:      in.CategoryID,
			UnitPrice:       in.UnitPrice,
			InitialQuantity: in.Quantity,
			ReorderLevel:    in.ReorderLevel,
			CreatedAt:       e.clock.Now(),
		})
		if err != nil {
			return err
		}
		item, err = tx.GetItem(ctx, id)
		return err
	})
	if err != nil {
		return domain.Item{}, err
	}
	e.logger.Debug("item created", zap.Int64("item_id", item.ID), zap.Int64("quantity", item.Quantity))
	return item, nil
}

// UpdateItem changes item attributes under the item's row lock. A reorder
// level change is not a quantity transition, so alert state is left as is.
func (e *Engine) UpdateItem(ctx context.Context, id int64, patch ItemPatch) (domain.Item, error) {
	const op = "update item"
	if patch.Name != nil {
		if err := domain.ValidateName(op, "name", *patch.Name); err != nil {
			return domain.Item{}, err
		}
	}
	if patch.UnitPrice != nil {
		if err := domain.ValidatePrice(op, "unit_price", *patch.UnitPrice); err != nil {
			return domain.Item{}, err
		}
	}
	if patch.ReorderLevel != nil {
		if err := domain.ValidateStockQuantity(op, "reorder_level", *patch.ReorderLevel); err != nil {
			return domain.Item{}, err
		}
	}

	release, err := e.locks.acquire(ctx, itemKey(id))
	if err != nil {
		return domain.Item{}, err
	}
	defer release()

	var item domain.Item
	err = e.store.WithTx(ctx, func(tx *store.Tx) error {
		cur, err := tx.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			cur.Name = *patch.Name
		}
		if patch.Manufacturer != nil {
			cur.Manufacturer = *patch.Manufacturer
		}
		if patch.CategoryID != nil {
			if _, err := tx.GetCategory(ctx, *patch.CategoryID); err != nil {
				return err
			}
			cur.CategoryID = patch.CategoryID
		}
		if patch.UnitPrice != nil {
			cur.UnitPrice = *patch.UnitPrice
		}
		if patch.ReorderLevel != nil {
			cur.ReorderLevel = *patch.ReorderLevel
		}
		if err := tx.UpdateItemAttributes(ctx, cur); err != nil {
			return err
		}
		item, err = tx.GetItem(ctx, id)
		return err
	})
	if err != nil {
		return domain.Item{}, err
	}
	return item, nil
}

// CreateDocument creates an empty document. A counterparty, when given, must
// exist and match the document kind: suppliers for purchases, customers for
// sales.
func (e *Engine) CreateDocument(ctx context.Context, in NewDocument) (domain.Document, error) {
	const op = "create document"
	if !in.Kind.Valid() {
		return domain.Document{}, domain.Validation(op, "kind", "unknown document kind %q", in.Kind)
	}
	if in.Status == "" {
		in.Status = domain.StatusCompleted
	}
	if !in.Status.Valid() {
		return domain.Document{}, domain.Validation(op, "status", "unknown document status %q", in.Status)
	}
	now := e.clock.Now()
	if in.Date.IsZero() {
		in.Date = now.Truncate(24 * time.Hour)
	}

	var doc domain.Document
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		if in.CounterpartyID != nil {
			cp, err := tx.GetCounterparty(ctx, *in.CounterpartyID)
			if err != nil {
				return err
			}
			if want := in.Kind.CounterpartyKind(); cp.Kind != want {
				return domain.Validation(op, "counterparty_id",
					"%s documents need a %s, counterparty %d is a %s", in.Kind, want, cp.ID, cp.Kind)
			}
		}
		id, err := tx.InsertDocument(ctx, domain.Document{
			Kind:           in.Kind,
			CounterpartyID: in.CounterpartyID,
			Date:           in.Date.UTC(),
			Status:         in.Status,
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}
		doc, err = tx.GetDocument(ctx, id)
		return err
	})
	if err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

// DeleteDocument removes every line of a document, running the delete
// reaction for each in insertion order, then removes the document. The whole
// operation is one transaction.
func (e *Engine) DeleteDocument(ctx context.Context, req DeleteDocumentRequest) (DeleteDocumentResult, error) {
	const op = "delete document"
	ctx, span := e.tracer.Start(ctx, "engine.DeleteDocument")
	defer span.End()

	fp, err := domain.Fingerprint(domain.DomainDocumentDeletion, map[string]any{
		"op":          "delete_document",
		"document_id": req.DocumentID,
	})
	if err != nil {
		return DeleteDocumentResult{}, failSpan(span, err)
	}

	releaseDoc, err := e.locks.acquire(ctx, docKey(req.DocumentID))
	if err != nil {
		return DeleteDocumentResult{}, failSpan(span, err)
	}
	defer releaseDoc()

	// With the document locked no line can be added, so this set of items
	// is complete. Item keys sort after document keys.
	lines, err := e.store.ListLines(ctx, req.DocumentID)
	if err != nil {
		return DeleteDocumentResult{}, failSpan(span, err)
	}
	locked := make(map[int64]bool, len(lines))
	keys := make([]string, 0, len(lines))
	for _, l := range lines {
		locked[l.ItemID] = true
		keys = append(keys, itemKey(l.ItemID))
	}
	releaseItems, err := e.locks.acquire(ctx, keys...)
	if err != nil {
		return DeleteDocumentResult{}, failSpan(span, err)
	}
	defer releaseItems()

	result := DeleteDocumentResult{DocumentID: req.DocumentID, Mutations: []domain.Mutation{}}
	err = e.store.WithTx(ctx, func(tx *store.Tx) error {
		replay, err := claimRequest(ctx, tx, op, req.RequestKey, fp, e.clock)
		if err != nil {
			return err
		}
		if replay {
			result.Replayed = true
			result.Mutations, err = tx.ListMutations(ctx, store.MutationFilter{RequestKey: &req.RequestKey})
			return err
		}

		if _, err := tx.GetDocument(ctx, req.DocumentID); err != nil {
			return err
		}
		current, err := tx.ListLines(ctx, req.DocumentID)
		if err != nil {
			return err
		}
		for _, line := range current {
			if !locked[line.ItemID] {
				return domain.Conflict(op, "document lines changed while deleting", nil)
			}
			if err := tx.DeleteLine(ctx, line.DocumentID, line.ItemID); err != nil {
				return err
			}
			ch := lineChange{
				Kind:        domain.MutationDelete,
				DocumentID:  line.DocumentID,
				ItemID:      line.ItemID,
				OldQuantity: line.Quantity,
				Fingerprint: fp,
			}
			if req.RequestKey != "" {
				ch.RequestKey = &req.RequestKey
			}
			cr, err := e.react(ctx, tx, ch)
			if err != nil {
				return err
			}
			result.Mutations = append(result.Mutations, cr.Mutation)
		}
		return tx.DeleteDocument(ctx, req.DocumentID)
	})
	if err != nil {
		e.logger.Error("document deletion rolled back",
			zap.Int64("document_id", req.DocumentID),
			zap.Error(err),
		)
		return DeleteDocumentResult{}, failSpan(span, err)
	}

	if !result.Replayed {
		for _, m := range result.Mutations {
			e.meters.recordMutation(ctx, m)
		}
	}
	e.logger.Info("document deleted",
		zap.Int64("document_id", req.DocumentID),
		zap.Int("lines", len(result.Mutations)),
		zap.Bool("replayed", result.Replayed),
	)
	return result, nil
}
