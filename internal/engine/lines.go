package engine

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roach88/stockline/internal/domain"
	"github.com/roach88/stockline/internal/store"
)

// AddLineRequest inserts a line. UnitPrice defaults to the item's current
// price. RequestKey, when set, makes the call idempotent.
type AddLineRequest struct {
	DocumentID int64
	ItemID     int64
	Quantity   int64
	UnitPrice  *decimal.Decimal
	RequestKey string
}

// UpdateLineRequest amends quantity and/or unit price of an existing line.
type UpdateLineRequest struct {
	DocumentID int64
	ItemID     int64
	Quantity   *int64
	UnitPrice  *decimal.Decimal
	RequestKey string
}

// RemoveLineRequest deletes a line.
type RemoveLineRequest struct {
	DocumentID int64
	ItemID     int64
	RequestKey string
}

// LineResult is the outcome of one line mutation. Document and Item are the
// post-commit state. On a replay Mutation is the journaled record of the
// original call and Alert is nil.
type LineResult struct {
	Mutation domain.Mutation
	Document domain.Document
	Item     domain.Item
	Alert    *domain.Alert
	Replayed bool
}

// AddLine inserts a line entry and runs its reaction cycle.
func (e *Engine) AddLine(ctx context.Context, req AddLineRequest) (LineResult, error) {
	const op = "add line"
	if err := domain.ValidateLineQuantity(op, req.Quantity); err != nil {
		return LineResult{}, err
	}
	price := ""
	if req.UnitPrice != nil {
		if err := domain.ValidatePrice(op, "unit_price", *req.UnitPrice); err != nil {
			return LineResult{}, err
		}
		price = req.UnitPrice.String()
	}
	fp, err := domain.Fingerprint(domain.DomainLineMutation, map[string]any{
		"op":          "add_line",
		"document_id": req.DocumentID,
		"item_id":     req.ItemID,
		"quantity":    req.Quantity,
		"unit_price":  price,
	})
	if err != nil {
		return LineResult{}, err
	}

	return e.runLine(ctx, op, req.DocumentID, req.ItemID, req.RequestKey, fp, func(tx *store.Tx) (lineChange, error) {
		if _, err := tx.GetDocument(ctx, req.DocumentID); err != nil {
			return lineChange{}, err
		}
		item, err := tx.GetItem(ctx, req.ItemID)
		if err != nil {
			return lineChange{}, err
		}
		if _, err := tx.GetLine(ctx, req.DocumentID, req.ItemID); err == nil {
			return lineChange{}, domain.Validation(op, "item_id",
				"document %d already has a line for item %d", req.DocumentID, req.ItemID)
		} else if !domain.IsNotFound(err) {
			return lineChange{}, err
		}

		unitPrice := item.UnitPrice
		if req.UnitPrice != nil {
			unitPrice = *req.UnitPrice
		}
		if _, err := tx.InsertLine(ctx, domain.LineEntry{
			DocumentID: req.DocumentID,
			ItemID:     req.ItemID,
			Quantity:   req.Quantity,
			UnitPrice:  unitPrice,
		}); err != nil {
			return lineChange{}, err
		}
		return lineChange{
			Kind:        domain.MutationInsert,
			DocumentID:  req.DocumentID,
			ItemID:      req.ItemID,
			NewQuantity: req.Quantity,
		}, nil
	})
}

// UpdateLine amends a line entry and runs its reaction cycle. A price-only
// change still resums the document but leaves the item untouched.
func (e *Engine) UpdateLine(ctx context.Context, req UpdateLineRequest) (LineResult, error) {
	const op = "update line"
	if req.Quantity == nil && req.UnitPrice == nil {
		return LineResult{}, domain.Validation(op, "quantity", "nothing to update")
	}
	fpReq := map[string]any{
		"op":          "update_line",
		"document_id": req.DocumentID,
		"item_id":     req.ItemID,
		"quantity":    int64(0),
		"unit_price":  "",
	}
	if req.Quantity != nil {
		if err := domain.ValidateLineQuantity(op, *req.Quantity); err != nil {
			return LineResult{}, err
		}
		fpReq["quantity"] = *req.Quantity
	}
	if req.UnitPrice != nil {
		if err := domain.ValidatePrice(op, "unit_price", *req.UnitPrice); err != nil {
			return LineResult{}, err
		}
		fpReq["unit_price"] = req.UnitPrice.String()
	}
	fp, err := domain.Fingerprint(domain.DomainLineMutation, fpReq)
	if err != nil {
		return LineResult{}, err
	}

	return e.runLine(ctx, op, req.DocumentID, req.ItemID, req.RequestKey, fp, func(tx *store.Tx) (lineChange, error) {
		line, err := tx.GetLine(ctx, req.DocumentID, req.ItemID)
		if err != nil {
			return lineChange{}, err
		}
		oldQty := line.Quantity
		if req.Quantity != nil {
			line.Quantity = *req.Quantity
		}
		if req.UnitPrice != nil {
			line.UnitPrice = *req.UnitPrice
		}
		if err := tx.UpdateLine(ctx, line); err != nil {
			return lineChange{}, err
		}
		return lineChange{
			Kind:        domain.MutationUpdate,
			DocumentID:  req.DocumentID,
			ItemID:      req.ItemID,
			OldQuantity: oldQty,
			NewQuantity: line.Quantity,
		}, nil
	})
}

// RemoveLine deletes a line entry and runs its reaction cycle, reversing the
// line's effect on the item.
func (e *Engine) RemoveLine(ctx context.Context, req RemoveLineRequest) (LineResult, error) {
	const op = "remove line"
	fp, err := domain.Fingerprint(domain.DomainLineMutation, map[string]any{
		"op":          "remove_line",
		"document_id": req.DocumentID,
		"item_id":     req.ItemID,
	})
	if err != nil {
		return LineResult{}, err
	}

	return e.runLine(ctx, op, req.DocumentID, req.ItemID, req.RequestKey, fp, func(tx *store.Tx) (lineChange, error) {
		line, err := tx.GetLine(ctx, req.DocumentID, req.ItemID)
		if err != nil {
			return lineChange{}, err
		}
		if err := tx.DeleteLine(ctx, req.DocumentID, req.ItemID); err != nil {
			return lineChange{}, err
		}
		return lineChange{
			Kind:        domain.MutationDelete,
			DocumentID:  req.DocumentID,
			ItemID:      req.ItemID,
			OldQuantity: line.Quantity,
		}, nil
	})
}

// runLine is the coordinator for one line mutation: lock the document and
// item rows, open a transaction, replay or claim the request key, apply the
// line write, run the reaction cycle, commit. Metrics and logs are emitted
// only after commit.
func (e *Engine) runLine(
	ctx context.Context,
	op string,
	documentID, itemID int64,
	requestKey, fingerprint string,
	apply func(tx *store.Tx) (lineChange, error),
) (LineResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine."+spanName(op), trace.WithAttributes(
		attribute.Int64("stockline.document_id", documentID),
		attribute.Int64("stockline.item_id", itemID),
	))
	defer span.End()

	release, err := e.locks.acquire(ctx, docKey(documentID), itemKey(itemID))
	if err != nil {
		return LineResult{}, failSpan(span, err)
	}
	defer release()

	var result LineResult
	err = e.store.WithTx(ctx, func(tx *store.Tx) error {
		replay, err := claimRequest(ctx, tx, op, requestKey, fingerprint, e.clock)
		if err != nil {
			return err
		}
		if replay {
			result, err = replayLine(ctx, tx, requestKey)
			return err
		}

		ch, err := apply(tx)
		if err != nil {
			return err
		}
		ch.Fingerprint = fingerprint
		if requestKey != "" {
			ch.RequestKey = &requestKey
		}
		cr, err := e.react(ctx, tx, ch)
		if err != nil {
			return err
		}
		result = LineResult{Mutation: cr.Mutation, Document: cr.Document, Item: cr.Item, Alert: cr.Alert}
		return nil
	})
	if err != nil {
		e.logger.Error("mutation rolled back",
			zap.String("op", op),
			zap.Int64("document_id", documentID),
			zap.Int64("item_id", itemID),
			zap.Error(err),
		)
		return LineResult{}, failSpan(span, err)
	}

	if result.Replayed {
		e.logger.Info("mutation replayed",
			zap.String("op", op),
			zap.String("request_key", requestKey),
			zap.String("mutation_id", result.Mutation.ID),
		)
		span.SetAttributes(attribute.Bool("stockline.replayed", true))
		return result, nil
	}

	m := result.Mutation
	e.meters.recordMutation(ctx, m)
	e.logger.Info("mutation committed",
		zap.String("op", op),
		zap.String("mutation_id", m.ID),
		zap.Int64("seq", m.Seq),
		zap.Int64("document_id", m.DocumentID),
		zap.Int64("item_id", m.ItemID),
		zap.Int64("quantity_before", m.QuantityBefore),
		zap.Int64("quantity_after", m.QuantityAfter),
		zap.String("alert", string(m.AlertTransition)),
	)
	span.SetAttributes(
		attribute.String("stockline.mutation_id", m.ID),
		attribute.Int64("stockline.clamped", m.Clamped),
		attribute.String("stockline.alert_transition", string(m.AlertTransition)),
	)
	return result, nil
}

// claimRequest records requestKey inside tx, or reports that it was already
// committed with the same request. A key reused for a different request is
// a validation error. An empty key is never recorded.
func claimRequest(ctx context.Context, tx *store.Tx, op, requestKey, fingerprint string, clock Clock) (bool, error) {
	if requestKey == "" {
		return false, nil
	}
	prev, err := tx.GetRequest(ctx, requestKey)
	if err != nil {
		return false, err
	}
	if prev != nil {
		if prev.Operation != op || prev.Fingerprint != fingerprint {
			return false, domain.Validation(op, "request_key",
				"idempotency key %q was already used for a different request", requestKey)
		}
		return true, nil
	}
	err = tx.InsertRequest(ctx, store.Request{Key: requestKey, Operation: op, Fingerprint: fingerprint}, clock.Now())
	return false, err
}

func replayLine(ctx context.Context, tx *store.Tx, requestKey string) (LineResult, error) {
	muts, err := tx.ListMutations(ctx, store.MutationFilter{RequestKey: &requestKey})
	if err != nil {
		return LineResult{}, err
	}
	if len(muts) == 0 {
		return LineResult{}, domain.Conflict("replay", "request "+requestKey+" has no journaled mutation", nil)
	}
	m := muts[0]
	res := LineResult{Mutation: m, Replayed: true}
	if res.Item, err = tx.GetItem(ctx, m.ItemID); err != nil {
		return LineResult{}, err
	}
	doc, err := tx.GetDocument(ctx, m.DocumentID)
	switch {
	case err == nil:
		res.Document = doc
	case !domain.IsNotFound(err):
		return LineResult{}, err
	}
	return res, nil
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	var de *domain.Error
	if errors.As(err, &de) {
		span.SetAttributes(attribute.String("stockline.error_code", string(de.Code)))
	}
	return err
}

func spanName(op string) string {
	switch op {
	case "add line":
		return "AddLine"
	case "update line":
		return "UpdateLine"
	case "remove line":
		return "RemoveLine"
	case "delete document":
		return "DeleteDocument"
	}
	return op
}
