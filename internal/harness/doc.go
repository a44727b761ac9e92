// Package harness runs consistency-engine scenarios.
//
// A scenario creates items, counterparties and documents, applies line
// mutations through the real engine, and then checks item quantities,
// document totals and alert state. The journal records each step produces
// form a trace that is compared against golden files.
//
// # Scenario Format
//
//	name: low_stock_alert_lifecycle
//	description: "Crossing down opens an alert, crossing back up resolves it"
//	setup:
//	  items:
//	    - {ref: a, quantity: 200, reorder_level: 50, unit_price: "2.00"}
//	  documents:
//	    - {ref: s1, kind: sales}
//	    - {ref: p1, kind: purchase}
//	steps:
//	  - {op: add_line, document: s1, item: a, quantity: 160}
//	  - {op: add_line, document: p1, item: a, quantity: 30}
//	  - {op: add_line, document: p1, item: a, quantity: 5, expect_error: VALIDATION}
//	assertions:
//	  - {type: item_quantity, item: a, equals: "70"}
//	  - {type: open_alerts, item: a, count: 0}
//	  - {type: alert_notes_contain, item: a, text: "auto-resolved"}
//
// Steps: add_line, update_line, remove_line, delete_document, reconcile,
// force_total. A step with expect_error passes only if it fails with that
// error code.
//
// Assertions: item_quantity, document_total, open_alerts, alert_count,
// alert_notes_contain, mutation_count.
//
// # Deterministic Testing
//
// Every run uses a fresh database, testutil.DeterministicClock and
// testutil.SequenceIDs, so traces are identical across runs.
package harness
