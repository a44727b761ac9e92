package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/stockline/internal/domain"
)

var testTime = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

// createTestStore creates a new temp-file store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedItem inserts an item with the given stock and reorder level.
func seedItem(t *testing.T, s *Store, name string, qty, reorder int64, price string) int64 {
	t.Helper()
	var id int64
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		var err error
		id, err = tx.InsertItem(context.Background(), domain.Item{
			Name:            name,
			UnitPrice:       decimal.RequireFromString(price),
			InitialQuantity: qty,
			ReorderLevel:    reorder,
			CreatedAt:       testTime,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return id
}

// seedDocument inserts an empty document of the given kind.
func seedDocument(t *testing.T, s *Store, kind domain.DocumentKind) int64 {
	t.Helper()
	var id int64
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		var err error
		id, err = tx.InsertDocument(context.Background(), domain.Document{
			Kind:      kind,
			Date:      testTime,
			Status:    domain.StatusCompleted,
			CreatedAt: testTime,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return id
}
