package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentKind distinguishes inbound from outbound documents.
type DocumentKind string

const (
	// KindPurchase documents receive stock; line quantities add to items.
	KindPurchase DocumentKind = "purchase"

	// KindSales documents fulfil orders; line quantities subtract from items.
	KindSales DocumentKind = "sales"
)

// Valid reports whether k is a known document kind.
func (k DocumentKind) Valid() bool {
	return k == KindPurchase || k == KindSales
}

// Sign is +1 for purchases and -1 for sales.
func (k DocumentKind) Sign() int64 {
	if k == KindSales {
		return -1
	}
	return 1
}

// CounterpartyKind returns the counterparty kind a document of this kind
// must reference.
func (k DocumentKind) CounterpartyKind() CounterpartyKind {
	if k == KindSales {
		return CounterpartyCustomer
	}
	return CounterpartySupplier
}

// DocumentStatus is informational. The engine applies line reactions
// regardless of status.
type DocumentStatus string

const (
	StatusPending   DocumentStatus = "pending"
	StatusCompleted DocumentStatus = "completed"
	StatusCancelled DocumentStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CounterpartyKind distinguishes customers from suppliers.
type CounterpartyKind string

const (
	CounterpartyCustomer CounterpartyKind = "customer"
	CounterpartySupplier CounterpartyKind = "supplier"
)

// Valid reports whether k is a known counterparty kind.
func (k CounterpartyKind) Valid() bool {
	return k == CounterpartyCustomer || k == CounterpartySupplier
}

// AlertKindLowStock is the only alert kind the lifecycle manager produces.
const AlertKindLowStock = "low stock"

// Category groups items for listing.
type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Counterparty is a customer or a supplier referenced by documents.
type Counterparty struct {
	ID      int64            `db:"id" json:"id"`
	Kind    CounterpartyKind `db:"kind" json:"kind"`
	Name    string           `db:"name" json:"name"`
	Email   string           `db:"email" json:"email,omitempty"`
	Phone   string           `db:"phone" json:"phone,omitempty"`
	Address string           `db:"address" json:"address,omitempty"`
}

// Item is a stock-keeping unit.
//
// Quantity is written only at creation (as InitialQuantity) and afterwards
// only by the engine's signed-delta reaction. Version increments on every
// write and backs optimistic conflict detection.
type Item struct {
	ID              int64           `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	Manufacturer    string          `db:"manufacturer" json:"manufacturer,omitempty"`
	CategoryID      *int64          `db:"category_id" json:"category_id,omitempty"`
	UnitPrice       decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity        int64           `db:"quantity" json:"quantity"`
	InitialQuantity int64           `db:"initial_quantity" json:"initial_quantity"`
	ReorderLevel    int64           `db:"reorder_level" json:"reorder_level"`
	Version         int64           `db:"version" json:"version"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Document is a purchase or sales transaction. Total is the resummed sum of
// its line values.
type Document struct {
	ID             int64           `db:"id" json:"id"`
	Kind           DocumentKind    `db:"kind" json:"kind"`
	CounterpartyID *int64          `db:"counterparty_id" json:"counterparty_id,omitempty"`
	Date           time.Time       `db:"doc_date" json:"date"`
	Status         DocumentStatus  `db:"status" json:"status"`
	Total          decimal.Decimal `db:"total" json:"total"`
	Version        int64           `db:"version" json:"version"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// LineEntry is one (document, item) line. Seq orders lines by insertion.
type LineEntry struct {
	DocumentID int64           `db:"document_id" json:"document_id"`
	ItemID     int64           `db:"item_id" json:"item_id"`
	Quantity   int64           `db:"quantity" json:"quantity"`
	UnitPrice  decimal.Decimal `db:"unit_price" json:"unit_price"`
	Seq        int64           `db:"seq" json:"seq"`
}

// LineValue is quantity times unit price. It is never stored.
func (l LineEntry) LineValue() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// Alert records that an item crossed down to or below its reorder level.
type Alert struct {
	ID         int64      `db:"id" json:"id"`
	ItemID     int64      `db:"item_id" json:"item_id"`
	Kind       string     `db:"kind" json:"kind"`
	Resolved   bool       `db:"resolved" json:"resolved"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	Notes      string     `db:"notes" json:"notes"`
}

// MutationKind identifies the line-entry change that started a reaction cycle.
type MutationKind string

const (
	MutationInsert MutationKind = "insert"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// AlertTransition is the output of the alert state machine for one cycle.
type AlertTransition string

const (
	TransitionNone     AlertTransition = "none"
	TransitionOpened   AlertTransition = "opened"
	TransitionResolved AlertTransition = "resolved"
)

// Mutation is the journal record of one committed reaction cycle.
//
// Delta is the signed adjustment requested (sign × line quantity change);
// Clamped is the part of it absorbed by the zero floor, so
// QuantityAfter == QuantityBefore + Delta + Clamped always holds.
type Mutation struct {
	ID              string          `db:"id" json:"id"`
	Seq             int64           `db:"seq" json:"seq"`
	Kind            MutationKind    `db:"kind" json:"kind"`
	DocumentID      int64           `db:"document_id" json:"document_id"`
	DocumentKind    DocumentKind    `db:"document_kind" json:"document_kind"`
	ItemID          int64           `db:"item_id" json:"item_id"`
	Delta           int64           `db:"delta" json:"delta"`
	QuantityBefore  int64           `db:"quantity_before" json:"quantity_before"`
	QuantityAfter   int64           `db:"quantity_after" json:"quantity_after"`
	Clamped         int64           `db:"clamped" json:"clamped"`
	TotalBefore     decimal.Decimal `db:"total_before" json:"total_before"`
	TotalAfter      decimal.Decimal `db:"total_after" json:"total_after"`
	AlertTransition AlertTransition `db:"alert_transition" json:"alert_transition"`
	AlertID         *int64          `db:"alert_id" json:"alert_id,omitempty"`
	RequestKey      *string         `db:"request_key" json:"request_key,omitempty"`
	Fingerprint     string          `db:"fingerprint" json:"fingerprint"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}
