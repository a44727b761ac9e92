package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/roach88/stockline/internal/domain"
	"github.com/roach88/stockline/internal/store"
)

// lineChange describes a line write that has already been applied inside
// tx. For inserts OldQuantity is 0; for deletes NewQuantity is 0.
type lineChange struct {
	Kind        domain.MutationKind
	DocumentID  int64
	ItemID      int64
	OldQuantity int64
	NewQuantity int64
	RequestKey  *string
	Fingerprint string
}

// cycleResult is everything one reaction cycle produced.
type cycleResult struct {
	Mutation domain.Mutation
	Document domain.Document
	Item     domain.Item
	Alert    *domain.Alert
}

// react runs the fixed reaction cycle for one committed-in-tx line change:
// resum document total, adjust item quantity, evaluate alert, journal.
// Any error leaves tx to be rolled back by the caller.
func (e *Engine) react(ctx context.Context, tx *store.Tx, ch lineChange) (cycleResult, error) {
	doc, err := tx.GetDocument(ctx, ch.DocumentID)
	if err != nil {
		return cycleResult{}, err
	}
	item, err := tx.GetItem(ctx, ch.ItemID)
	if err != nil {
		return cycleResult{}, err
	}

	// 1. Document total by full resummation.
	totalBefore := doc.Total
	doc, err = resumDocument(ctx, tx, doc)
	if err != nil {
		return cycleResult{}, err
	}
	e.logger.Debug("document resummed",
		zap.Int64("document_id", doc.ID),
		zap.String("total_before", totalBefore.String()),
		zap.String("total_after", doc.Total.String()),
	)

	// 2. Item quantity by signed delta.
	delta := doc.Kind.Sign() * (ch.NewQuantity - ch.OldQuantity)
	before := item.Quantity
	after, clamped, ok := applyDelta(before, delta)
	if !ok {
		return cycleResult{}, domain.Validation(string(ch.Kind)+" line", "quantity",
			"item %d quantity %d cannot take %+d without overflowing", item.ID, before, delta)
	}
	if after != before {
		if err := tx.SetItemQuantity(ctx, item.ID, item.Version, after); err != nil {
			return cycleResult{}, err
		}
		item.Quantity = after
		item.Version++
	}
	if clamped > 0 {
		e.logger.Warn("quantity clamped at zero",
			zap.Int64("item_id", item.ID),
			zap.Int64("quantity_before", before),
			zap.Int64("delta", delta),
			zap.Int64("absorbed", clamped),
		)
	}

	// 3. Alert state machine on the settled (before, after) pair.
	transition, alert, err := e.evaluateAlert(ctx, tx, item, before, after)
	if err != nil {
		return cycleResult{}, err
	}

	// 4. Journal.
	m := domain.Mutation{
		ID:              e.ids.Generate(),
		Kind:            ch.Kind,
		DocumentID:      doc.ID,
		DocumentKind:    doc.Kind,
		ItemID:          item.ID,
		Delta:           delta,
		QuantityBefore:  before,
		QuantityAfter:   after,
		Clamped:         clamped,
		TotalBefore:     totalBefore,
		TotalAfter:      doc.Total,
		AlertTransition: transition,
		RequestKey:      ch.RequestKey,
		Fingerprint:     ch.Fingerprint,
		CreatedAt:       e.clock.Now(),
	}
	if alert != nil {
		m.AlertID = &alert.ID
	}
	seq, err := tx.AppendMutation(ctx, m)
	if err != nil {
		return cycleResult{}, err
	}
	m.Seq = seq

	return cycleResult{Mutation: m, Document: doc, Item: item, Alert: alert}, nil
}

// applyDelta returns max(0, qty+delta) and how much the floor absorbed.
// QuantityAfter == QuantityBefore + delta + clamped always holds. ok is
// false when qty+delta does not fit in an int64.
func applyDelta(qty, delta int64) (after, clamped int64, ok bool) {
	if delta > 0 && qty > math.MaxInt64-delta {
		return 0, 0, false
	}
	if delta < 0 && qty < math.MinInt64-delta {
		return 0, 0, false
	}
	raw := qty + delta
	if raw < 0 {
		return 0, -raw, true
	}
	return raw, 0, true
}

// resumDocument recomputes doc.Total from every current line and stores it
// when it changed. The returned document carries the new total and version.
func resumDocument(ctx context.Context, tx *store.Tx, doc domain.Document) (domain.Document, error) {
	lines, err := tx.ListLines(ctx, doc.ID)
	if err != nil {
		return doc, err
	}
	total := sumLines(lines)
	if total.Equal(doc.Total) {
		return doc, nil
	}
	if err := tx.SetDocumentTotal(ctx, doc.ID, doc.Version, total); err != nil {
		return doc, err
	}
	doc.Total = total
	doc.Version++
	return doc, nil
}

func sumLines(lines []domain.LineEntry) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineValue())
	}
	return total
}

func alertNotes(quantity, level int64) string {
	return fmt.Sprintf("low stock: quantity %d at or below reorder level %d", quantity, level)
}

func resolutionNote(quantity, level int64) string {
	return fmt.Sprintf("; auto-resolved: quantity %d above reorder level %d", quantity, level)
}

// evaluateAlert is the per-item Mealy machine. Output depends on the
// (before, after) pair, never on after alone:
//
//	before > level, after <= level  -> open (if none is open)
//	before <= level, after > level  -> resolve the open alert (if any)
//	otherwise                       -> no transition
func (e *Engine) evaluateAlert(ctx context.Context, tx *store.Tx, item domain.Item, before, after int64) (domain.AlertTransition, *domain.Alert, error) {
	level := item.ReorderLevel
	switch {
	case before > level && after <= level:
		open, err := tx.OpenAlert(ctx, item.ID)
		if err != nil {
			return domain.TransitionNone, nil, err
		}
		if open != nil {
			return domain.TransitionNone, nil, nil
		}
		a := domain.Alert{
			ItemID:    item.ID,
			Kind:      domain.AlertKindLowStock,
			CreatedAt: e.clock.Now(),
			Notes:     alertNotes(after, level),
		}
		id, err := tx.InsertAlert(ctx, a)
		if err != nil {
			return domain.TransitionNone, nil, err
		}
		a.ID = id
		e.logger.Info("low-stock alert opened",
			zap.Int64("item_id", item.ID),
			zap.Int64("alert_id", id),
			zap.Int64("quantity", after),
			zap.Int64("reorder_level", level),
		)
		return domain.TransitionOpened, &a, nil

	case before <= level && after > level:
		open, err := tx.OpenAlert(ctx, item.ID)
		if err != nil {
			return domain.TransitionNone, nil, err
		}
		if open == nil {
			return domain.TransitionNone, nil, nil
		}
		resolvedAt := e.clock.Now()
		notes := open.Notes + resolutionNote(after, level)
		if err := tx.ResolveAlert(ctx, open.ID, resolvedAt, notes); err != nil {
			return domain.TransitionNone, nil, err
		}
		open.Resolved = true
		open.ResolvedAt = &resolvedAt
		open.Notes = notes
		e.logger.Info("low-stock alert resolved",
			zap.Int64("item_id", item.ID),
			zap.Int64("alert_id", open.ID),
			zap.Int64("quantity", after),
			zap.Int64("reorder_level", level),
		)
		return domain.TransitionResolved, open, nil
	}
	return domain.TransitionNone, nil, nil
}
