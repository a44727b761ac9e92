package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/stockline/internal/domain"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. Zero-valued optional fields are left out so the
// golden files only carry what a step actually produced.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"step": int64(ev.Step),
			"op":   ev.Op,
		}
		if ev.Error != "" {
			m["error"] = ev.Error
			traceList[i] = m
			continue
		}
		if ev.Seq != 0 {
			m["seq"] = ev.Seq
			m["kind"] = ev.Kind
			m["item"] = ev.Item
			m["delta"] = ev.Delta
			m["quantity_before"] = ev.QuantityBefore
			m["quantity_after"] = ev.QuantityAfter
			m["clamped"] = ev.Clamped
			m["total_before"] = ev.TotalBefore
			m["alert_transition"] = ev.AlertTransition
		}
		if ev.Document != "" {
			m["document"] = ev.Document
		}
		if ev.TotalAfter != "" {
			m["total_after"] = ev.TotalAfter
		}
		if ev.Replayed {
			m["replayed"] = true
		}
		if ev.Op == OpReconcile {
			m["corrected"] = int64(ev.Corrected)
		}
		traceList[i] = m
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

// MarshalTrace renders a result's trace as canonical JSON.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: scenarioName, Trace: result.Trace}
	return domain.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/scenarios/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/scenarios/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
