// Package engine implements the stockline consistency engine.
//
// Every line-entry mutation (insert, update, delete) runs exactly one
// reaction cycle inside the same store transaction as the line write:
//
//  1. Resum the owning document's total from all of its current lines.
//  2. Adjust the referenced item's quantity by the signed delta
//     (purchase +1, sales -1) times the line quantity change, clamped at 0.
//  3. Feed the item's (old, new) quantity pair to the alert state machine.
//  4. Append a journal record.
//
// Steps run in this order, always. The alert machine never observes an
// intermediate quantity, and a failure at any step rolls back all of them
// together with the line write.
//
// The asymmetry between 1 and 2 is intentional: document totals are resummed
// so they heal any drift, item quantities move by delta so a single line
// change never scans an item's whole history.
//
// CONCURRENCY:
//
// Mutations touching the same document or item are serialized by a per-row
// lock table; mutations on disjoint rows take disjoint locks. Row locks are
// taken before the transaction begins and in a fixed order (document keys
// before item keys, each sorted), so two mutations can never wait on each
// other. Items and documents also carry version columns, so a writer in
// another process that raced us surfaces as a retryable CONFLICT.
//
// CLAMPING:
//
// A sales line larger than the stock on hand drives quantity to 0, not below.
// The absorbed amount is journaled on the mutation (Clamped) and logged; it
// is not an error. Reversing a clamped line restores the full line quantity,
// so after a clamp the item quantity no longer equals purchases minus sales.
// Audit reports that drift.
package engine
