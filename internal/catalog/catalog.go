// Package catalog compiles CUE catalog files into entities and applies them
// through the engine, so bulk-loaded lines fire the same reactions as
// interactive ones.
//
// A catalog looks like:
//
//	categories: ["Tools"]
//	counterparties: acme: {kind: "customer", name: "Acme"}
//	items: hammer: {name: "Hammer", category: "Tools", unit_price: "12.50", quantity: 10, reorder_level: 3}
//	documents: [{kind: "sales", counterparty: "acme", date: "2026-01-05", lines: [{item: "hammer", quantity: 2}]}]
//
// Counterparties and items are keyed by a label that documents refer to.
package catalog

import (
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"github.com/shopspring/decimal"

	"github.com/roach88/stockline/internal/domain"
)

// Catalog is a compiled catalog, in declaration order.
type Catalog struct {
	Categories     []string
	Counterparties []Counterparty
	Items          []Item
	Documents      []Document
}

// Counterparty is a catalog customer or supplier.
type Counterparty struct {
	Label   string
	Kind    domain.CounterpartyKind
	Name    string
	Email   string
	Phone   string
	Address string
}

// Item is a catalog item with its initial stock.
type Item struct {
	Label        string
	Name         string
	Manufacturer string
	Category     string
	UnitPrice    decimal.Decimal
	Quantity     int64
	ReorderLevel int64
}

// Document is a catalog document with its lines.
type Document struct {
	Kind         domain.DocumentKind
	Counterparty string
	Date         time.Time
	Status       domain.DocumentStatus
	Lines        []Line
	Pos          token.Pos
}

// Line references an item by label. A nil UnitPrice takes the item's price.
type Line struct {
	Item      string
	Quantity  int64
	UnitPrice *decimal.Decimal
}

// CompileError is a catalog error with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile compiles a single .cue file, or every .cue file of a directory
// as one instance.
func LoadFile(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	ctx := cuecontext.New()

	var v cue.Value
	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, fmt.Errorf("catalog: no CUE instances in %s", path)
		}
		if err := instances[0].Err; err != nil {
			return nil, formatCUEError(err)
		}
		v = ctx.BuildInstance(instances[0])
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		v = ctx.CompileBytes(data, cue.Filename(path))
	}
	return Compile(v)
}

// Compile extracts a Catalog from a CUE value. Labels are checked: every
// category, counterparty and item a document or item refers to must be
// declared in the same catalog.
func Compile(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	cat := &Catalog{}
	var err error
	if cat.Categories, err = parseCategories(v); err != nil {
		return nil, err
	}
	if cat.Counterparties, err = parseCounterparties(v); err != nil {
		return nil, err
	}
	if cat.Items, err = parseItems(v); err != nil {
		return nil, err
	}
	if cat.Documents, err = parseDocuments(v); err != nil {
		return nil, err
	}
	if err := cat.checkReferences(); err != nil {
		return nil, err
	}
	return cat, nil
}

func parseCategories(v cue.Value) ([]string, error) {
	names := []string{}
	catVal := v.LookupPath(cue.ParsePath("categories"))
	if !catVal.Exists() {
		return names, nil
	}
	iter, err := catVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		names = append(names, name)
	}
	return names, nil
}

func parseCounterparties(v cue.Value) ([]Counterparty, error) {
	out := []Counterparty{}
	cpVal := v.LookupPath(cue.ParsePath("counterparties"))
	if !cpVal.Exists() {
		return out, nil
	}
	iter, err := cpVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		fv := iter.Value()
		cp := Counterparty{Label: iter.Label()}
		kind, err := requiredString(fv, "kind")
		if err != nil {
			return nil, err
		}
		cp.Kind = domain.CounterpartyKind(kind)
		if !cp.Kind.Valid() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("counterparties.%s.kind", cp.Label),
				Message: fmt.Sprintf("must be customer or supplier, got %q", kind),
				Pos:     fv.Pos(),
			}
		}
		if cp.Name, err = requiredString(fv, "name"); err != nil {
			return nil, err
		}
		if cp.Email, err = optionalString(fv, "email"); err != nil {
			return nil, err
		}
		if cp.Phone, err = optionalString(fv, "phone"); err != nil {
			return nil, err
		}
		if cp.Address, err = optionalString(fv, "address"); err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func parseItems(v cue.Value) ([]Item, error) {
	out := []Item{}
	itemsVal := v.LookupPath(cue.ParsePath("items"))
	if !itemsVal.Exists() {
		return out, nil
	}
	iter, err := itemsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		fv := iter.Value()
		item := Item{Label: iter.Label()}
		if item.Name, err = requiredString(fv, "name"); err != nil {
			return nil, err
		}
		if item.Manufacturer, err = optionalString(fv, "manufacturer"); err != nil {
			return nil, err
		}
		if item.Category, err = optionalString(fv, "category"); err != nil {
			return nil, err
		}
		price, err := money(fv, "unit_price")
		if err != nil {
			return nil, err
		}
		if price == nil {
			return nil, &CompileError{Field: fmt.Sprintf("items.%s.unit_price", item.Label), Message: "unit_price is required", Pos: fv.Pos()}
		}
		item.UnitPrice = *price
		if item.Quantity, err = integer(fv, "quantity", 0); err != nil {
			return nil, err
		}
		if item.ReorderLevel, err = integer(fv, "reorder_level", 0); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func parseDocuments(v cue.Value) ([]Document, error) {
	out := []Document{}
	docsVal := v.LookupPath(cue.ParsePath("documents"))
	if !docsVal.Exists() {
		return out, nil
	}
	iter, err := docsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		dv := iter.Value()
		doc := Document{Pos: dv.Pos()}
		kind, err := requiredString(dv, "kind")
		if err != nil {
			return nil, err
		}
		doc.Kind = domain.DocumentKind(kind)
		if !doc.Kind.Valid() {
			return nil, &CompileError{Field: "documents.kind", Message: fmt.Sprintf("must be purchase or sales, got %q", kind), Pos: dv.Pos()}
		}
		if doc.Counterparty, err = optionalString(dv, "counterparty"); err != nil {
			return nil, err
		}
		status, err := optionalString(dv, "status")
		if err != nil {
			return nil, err
		}
		doc.Status = domain.DocumentStatus(status)
		if status != "" && !doc.Status.Valid() {
			return nil, &CompileError{Field: "documents.status", Message: fmt.Sprintf("unknown status %q", status), Pos: dv.Pos()}
		}
		date, err := optionalString(dv, "date")
		if err != nil {
			return nil, err
		}
		if date != "" {
			doc.Date, err = time.Parse(time.DateOnly, date)
			if err != nil {
				return nil, &CompileError{Field: "documents.date", Message: fmt.Sprintf("date must be YYYY-MM-DD: %v", err), Pos: dv.Pos()}
			}
		}
		if doc.Lines, err = parseLines(dv); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func parseLines(dv cue.Value) ([]Line, error) {
	lines := []Line{}
	linesVal := dv.LookupPath(cue.ParsePath("lines"))
	if !linesVal.Exists() {
		return lines, nil
	}
	iter, err := linesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		lv := iter.Value()
		var line Line
		if line.Item, err = requiredString(lv, "item"); err != nil {
			return nil, err
		}
		if line.Quantity, err = integer(lv, "quantity", -1); err != nil {
			return nil, err
		}
		if line.Quantity <= 0 {
			return nil, &CompileError{Field: "lines.quantity", Message: "line quantity must be a positive int", Pos: lv.Pos()}
		}
		if line.UnitPrice, err = money(lv, "unit_price"); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (c *Catalog) checkReferences() error {
	categories := make(map[string]bool, len(c.Categories))
	for _, name := range c.Categories {
		categories[name] = true
	}
	counterparties := make(map[string]domain.CounterpartyKind, len(c.Counterparties))
	for _, cp := range c.Counterparties {
		counterparties[cp.Label] = cp.Kind
	}
	items := make(map[string]bool, len(c.Items))
	for _, item := range c.Items {
		items[item.Label] = true
		if item.Category != "" && !categories[item.Category] {
			return &CompileError{Field: fmt.Sprintf("items.%s.category", item.Label), Message: fmt.Sprintf("undeclared category %q", item.Category)}
		}
	}
	for _, doc := range c.Documents {
		if doc.Counterparty != "" {
			kind, ok := counterparties[doc.Counterparty]
			if !ok {
				return &CompileError{Field: "documents.counterparty", Message: fmt.Sprintf("undeclared counterparty %q", doc.Counterparty), Pos: doc.Pos}
			}
			if want := doc.Kind.CounterpartyKind(); kind != want {
				return &CompileError{Field: "documents.counterparty", Message: fmt.Sprintf("%s documents need a %s, %q is a %s", doc.Kind, want, doc.Counterparty, kind), Pos: doc.Pos}
			}
		}
		seen := make(map[string]bool, len(doc.Lines))
		for _, line := range doc.Lines {
			if !items[line.Item] {
				return &CompileError{Field: "lines.item", Message: fmt.Sprintf("undeclared item %q", line.Item), Pos: doc.Pos}
			}
			if seen[line.Item] {
				return &CompileError{Field: "lines.item", Message: fmt.Sprintf("item %q appears twice in one document", line.Item), Pos: doc.Pos}
			}
			seen[line.Item] = true
		}
	}
	return nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// integer reads an int field. Floats are rejected: quantities and
// thresholds are whole units.
func integer(v cue.Value, field string, def int64) (int64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return def, nil
	}
	if fv.Kind() != cue.IntKind {
		return 0, &CompileError{Field: field, Message: fmt.Sprintf("%s must be an int, got %v", field, fv.Kind()), Pos: fv.Pos()}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	if n < 0 {
		return 0, &CompileError{Field: field, Message: fmt.Sprintf("%s must not be negative", field), Pos: fv.Pos()}
	}
	return n, nil
}

// money reads a price given as a decimal string or a number. Numbers are
// taken from their JSON text so no binary float rounding creeps in.
func money(v cue.Value, field string) (*decimal.Decimal, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	var text string
	switch fv.Kind() {
	case cue.StringKind:
		s, err := fv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		text = s
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		b, err := fv.MarshalJSON()
		if err != nil {
			return nil, formatCUEError(err)
		}
		text = string(b)
	default:
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("%s must be a decimal string or number", field), Pos: fv.Pos()}
	}
	d, err := domain.ParseMoney("catalog", field, text)
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
	}
	return &d, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
