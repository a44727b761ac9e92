package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalTraceShapes(t *testing.T) {
	result := NewResult()
	result.Trace = []TraceEvent{
		{Step: 0, Op: OpAddLine, Error: "VALIDATION", Item: "ignored"},
		{Step: 1, Op: OpReconcile},
		{Step: 2, Op: OpForceTotal, Document: "s1", TotalAfter: "9.00"},
	}

	data, err := MarshalTrace("shapes", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"shapes","trace":[`+
			`{"error":"VALIDATION","op":"add_line","step":0},`+
			`{"corrected":0,"op":"reconcile","step":1},`+
			`{"document":"s1","op":"force_total","step":2,"total_after":"9.00"}]}`,
		string(data))
}

func TestMarshalTraceJournalEvent(t *testing.T) {
	result := NewResult()
	result.Trace = []TraceEvent{{
		Step: 0, Op: OpAddLine, Seq: 4, Kind: "insert", Document: "s1", Item: "a",
		Delta: -3, QuantityBefore: 3, QuantityAfter: 0, Clamped: 0,
		TotalBefore: "0.00", TotalAfter: "6.00", AlertTransition: "opened", Replayed: true,
	}}

	data, err := MarshalTrace("journal", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"journal","trace":[{"alert_transition":"opened","clamped":0,"delta":-3,`+
			`"document":"s1","item":"a","kind":"insert","op":"add_line","quantity_after":0,`+
			`"quantity_before":3,"replayed":true,"seq":4,"step":0,"total_after":"6.00","total_before":"0.00"}]}`,
		string(data))
}
