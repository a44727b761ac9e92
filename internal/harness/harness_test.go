package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stockline/internal/domain"
)

func TestScenarios(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		scenario, err := LoadScenario(file)
		require.NoError(t, err, file)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func minimalScenario() *Scenario {
	return &Scenario{
		Name:        "minimal",
		Description: "one sale",
		Setup: Setup{
			Items:     []ItemSetup{{Ref: "a", Quantity: 10, ReorderLevel: 3, UnitPrice: "1.00"}},
			Documents: []DocumentSetup{{Ref: "s1", Kind: "sales"}},
		},
		Steps: []Step{
			{Op: OpAddLine, Document: "s1", Item: "a", Quantity: ptr(int64(8))},
		},
		Assertions: []Assertion{
			{Type: AssertItemQuantity, Item: "a", Equals: "2"},
			{Type: AssertOpenAlerts, Item: "a", Count: ptr(1)},
		},
	}
}

func TestRunMinimalScenario(t *testing.T) {
	result, err := Run(context.Background(), minimalScenario())
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 1)
	ev := result.Trace[0]
	assert.Equal(t, int64(1), ev.Seq)
	assert.Equal(t, "s1", ev.Document)
	assert.Equal(t, "a", ev.Item)
	assert.Equal(t, int64(-8), ev.Delta)
	assert.Equal(t, int64(10), ev.QuantityBefore)
	assert.Equal(t, int64(2), ev.QuantityAfter)
	assert.Equal(t, "8.00", ev.TotalAfter)
	assert.Equal(t, string(domain.TransitionOpened), ev.AlertTransition)
}

func TestRunIsDeterministic(t *testing.T) {
	first, err := Run(context.Background(), minimalScenario())
	require.NoError(t, err)
	second, err := Run(context.Background(), minimalScenario())
	require.NoError(t, err)

	a, err := MarshalTrace("minimal", first)
	require.NoError(t, err)
	b, err := MarshalTrace("minimal", second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRunReportsUnexpectedError(t *testing.T) {
	s := minimalScenario()
	s.Steps = append(s.Steps, Step{Op: OpAddLine, Document: "s1", Item: "a", Quantity: ptr(int64(1))})

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "step 1 (add_line)")
}

func TestRunReportsWrongErrorCode(t *testing.T) {
	s := minimalScenario()
	s.Steps = append(s.Steps, Step{Op: OpAddLine, Document: "s1", Item: "a", Quantity: ptr(int64(1)), ExpectError: "CONFLICT"})

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected CONFLICT error")
}

func TestRunReportsMissingExpectedError(t *testing.T) {
	s := minimalScenario()
	s.Steps[0].ExpectError = "VALIDATION"

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "step succeeded")
	assert.Len(t, result.Trace, 1, "the successful step is still traced")
}

func TestRunRecordsExpectedError(t *testing.T) {
	s := minimalScenario()
	s.Steps = append(s.Steps,
		Step{Op: OpRemoveLine, Document: "s1", Item: "a"},
		Step{Op: OpAddLine, Document: "s1", Item: "a", Quantity: ptr(int64(0)), ExpectError: "VALIDATION"},
	)
	s.Assertions = []Assertion{
		{Type: AssertItemQuantity, Item: "a", Equals: "10"},
		{Type: AssertAlertCount, Item: "a", Count: ptr(1)},
		{Type: AssertOpenAlerts, Item: "a", Count: ptr(0)},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 3)
	assert.Equal(t, string(domain.TransitionResolved), result.Trace[1].AlertTransition)
	assert.Equal(t, TraceEvent{Step: 2, Op: OpAddLine, Error: "VALIDATION"}, result.Trace[2])
}

func TestRunSetupFailureAbortsRun(t *testing.T) {
	s := minimalScenario()
	s.Setup.Items[0].UnitPrice = "-1"

	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute setup")
}

func TestFindScenariosFilter(t *testing.T) {
	all, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)

	some, err := FindScenarios("testdata/scenarios", "*alert*")
	require.NoError(t, err)
	assert.Less(t, len(some), len(all))
	for _, f := range some {
		assert.Contains(t, filepath.Base(f), "alert")
	}

	_, err = FindScenarios("testdata/scenarios", "[")
	assert.Error(t, err)
}

func TestWriteAndCompareGolden(t *testing.T) {
	s := minimalScenario()
	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	path := GoldenPath(filepath.Join(t.TempDir(), "minimal.yaml"), s)
	require.NoError(t, WriteGolden(path, s, result))

	match, err := CompareGolden(path, s, result)
	require.NoError(t, err)
	assert.True(t, match)

	result.Trace[0].QuantityAfter = 3
	match, err = CompareGolden(path, s, result)
	require.NoError(t, err)
	assert.False(t, match)
}

func ptr[T any](v T) *T { return &v }
