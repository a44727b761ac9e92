package harness

import "github.com/roach88/stockline/internal/domain"

// TraceEvent is one entry of a scenario trace: either a journaled reaction
// cycle or a step outcome that wrote no journal record (a rejected step, a
// reconcile pass).
type TraceEvent struct {
	Step            int    `json:"step"`
	Op              string `json:"op"`
	Seq             int64  `json:"seq,omitempty"`
	Kind            string `json:"kind,omitempty"`
	Document        string `json:"document,omitempty"`
	Item            string `json:"item,omitempty"`
	Delta           int64  `json:"delta"`
	QuantityBefore  int64  `json:"quantity_before"`
	QuantityAfter   int64  `json:"quantity_after"`
	Clamped         int64  `json:"clamped"`
	TotalBefore     string `json:"total_before,omitempty"`
	TotalAfter      string `json:"total_after,omitempty"`
	AlertTransition string `json:"alert_transition,omitempty"`
	Replayed        bool   `json:"replayed,omitempty"`
	Error           string `json:"error,omitempty"`
	Corrected       int    `json:"corrected,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as expected and every assertion
	// held.
	Pass bool `json:"pass"`

	// Trace lists step outcomes in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addMutation appends a journal record to the trace, naming the document
// and item by their scenario references.
func (r *Result) addMutation(step int, op string, m domain.Mutation, names refNames, replayed bool) {
	r.Trace = append(r.Trace, TraceEvent{
		Step:            step,
		Op:              op,
		Seq:             m.Seq,
		Kind:            string(m.Kind),
		Document:        names.document(m.DocumentID),
		Item:            names.item(m.ItemID),
		Delta:           m.Delta,
		QuantityBefore:  m.QuantityBefore,
		QuantityAfter:   m.QuantityAfter,
		Clamped:         m.Clamped,
		TotalBefore:     domain.FormatMoney(m.TotalBefore),
		TotalAfter:      domain.FormatMoney(m.TotalAfter),
		AlertTransition: string(m.AlertTransition),
		Replayed:        replayed,
	})
}
