// Package domain defines the records the consistency engine maintains.
//
// An Item's on-hand quantity is derived from the LineEntry records that
// reference it; a Document's total is derived from its own LineEntry records;
// an Alert's open/resolved state is derived from Item quantity crossings. All
// three are stored, never recomputed on read, and kept consistent by
// internal/engine.
//
// The package also holds the error taxonomy shared by every layer, money
// helpers built on shopspring/decimal, and the canonical JSON encoding used
// for mutation fingerprints and golden traces.
package domain
