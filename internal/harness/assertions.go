package harness

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/stockline/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Subject  string // Item or document ref
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Subject != "" {
		fmt.Fprintf(&buf, " (%s)", e.Subject)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// AssertionContext provides database access and ref resolution for
// assertions.
type AssertionContext struct {
	Store     *store.Store
	Ctx       context.Context
	Items     map[string]int64
	Documents map[string]int64
}

// EvaluateAssertions evaluates all assertions against the final state.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errors []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertItemQuantity:
			err = assertItemQuantity(actx, a)
		case AssertDocumentTotal:
			err = assertDocumentTotal(actx, a)
		case AssertOpenAlerts:
			err = assertAlertCount(actx, a, true)
		case AssertAlertCount:
			err = assertAlertCount(actx, a, false)
		case AssertAlertNotesContain:
			err = assertAlertNotesContain(actx, a)
		case AssertMutationCount:
			err = assertMutationCount(actx, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

func assertItemQuantity(actx *AssertionContext, a Assertion) error {
	want, err := strconv.ParseInt(a.Equals, 10, 64)
	if err != nil {
		return fmt.Errorf("item_quantity: equals must be an int: %w", err)
	}
	item, err := actx.Store.GetItem(actx.Ctx, actx.Items[a.Item])
	if err != nil {
		return fmt.Errorf("item_quantity: %w", err)
	}
	if item.Quantity != want {
		return &AssertionError{
			Type:     AssertItemQuantity,
			Subject:  a.Item,
			Expected: strconv.FormatInt(want, 10),
			Actual:   strconv.FormatInt(item.Quantity, 10),
		}
	}
	return nil
}

// assertDocumentTotal compares by value, so "320" matches "320.00".
func assertDocumentTotal(actx *AssertionContext, a Assertion) error {
	want, err := decimal.NewFromString(a.Equals)
	if err != nil {
		return fmt.Errorf("document_total: equals must be a decimal: %w", err)
	}
	doc, err := actx.Store.GetDocument(actx.Ctx, actx.Documents[a.Document])
	if err != nil {
		return fmt.Errorf("document_total: %w", err)
	}
	if !doc.Total.Equal(want) {
		return &AssertionError{
			Type:     AssertDocumentTotal,
			Subject:  a.Document,
			Expected: want.String(),
			Actual:   doc.Total.String(),
		}
	}
	return nil
}

func assertAlertCount(actx *AssertionContext, a Assertion, openOnly bool) error {
	id := actx.Items[a.Item]
	alerts, err := actx.Store.ListAlerts(actx.Ctx, store.AlertFilter{ItemID: &id, OpenOnly: openOnly})
	if err != nil {
		return fmt.Errorf("%s: %w", a.Type, err)
	}
	if len(alerts) != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Subject:  a.Item,
			Expected: fmt.Sprintf("%d alerts", *a.Count),
			Actual:   fmt.Sprintf("%d alerts", len(alerts)),
		}
	}
	return nil
}

func assertAlertNotesContain(actx *AssertionContext, a Assertion) error {
	id := actx.Items[a.Item]
	alerts, err := actx.Store.ListAlerts(actx.Ctx, store.AlertFilter{ItemID: &id})
	if err != nil {
		return fmt.Errorf("alert_notes_contain: %w", err)
	}
	notes := make([]string, 0, len(alerts))
	for _, al := range alerts {
		if strings.Contains(al.Notes, a.Text) {
			return nil
		}
		notes = append(notes, al.Notes)
	}
	return &AssertionError{
		Type:     AssertAlertNotesContain,
		Subject:  a.Item,
		Expected: fmt.Sprintf("an alert note containing %q", a.Text),
		Actual:   fmt.Sprintf("%q", notes),
	}
}

// assertMutationCount counts journal records, for one item when Item is
// set.
func assertMutationCount(actx *AssertionContext, a Assertion) error {
	var f store.MutationFilter
	if a.Item != "" {
		id := actx.Items[a.Item]
		f.ItemID = &id
	}
	muts, err := actx.Store.ListMutations(actx.Ctx, f)
	if err != nil {
		return fmt.Errorf("mutation_count: %w", err)
	}
	if len(muts) != *a.Count {
		return &AssertionError{
			Type:     AssertMutationCount,
			Subject:  a.Item,
			Expected: fmt.Sprintf("%d journal records", *a.Count),
			Actual:   fmt.Sprintf("%d journal records", len(muts)),
		}
	}
	return nil
}
