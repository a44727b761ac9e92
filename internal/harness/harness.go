package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/roach88/stockline/internal/domain"
	"github.com/roach88/stockline/internal/engine"
	"github.com/roach88/stockline/internal/store"
	"github.com/roach88/stockline/internal/testutil"
)

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger *zap.Logger
}

// WithLogger sets the logger handed to the engine. Scenarios run silently
// by default.
func WithLogger(l *zap.Logger) Option {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Harness holds the state of one scenario execution.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *zap.Logger

	items          map[string]int64
	documents      map[string]int64
	counterparties map[string]int64
	names          refNames
}

// refNames maps database ids back to scenario refs for traces.
type refNames struct {
	items     map[int64]string
	documents map[int64]string
}

func (n refNames) item(id int64) string {
	if ref, ok := n.items[id]; ok {
		return ref
	}
	return fmt.Sprintf("#%d", id)
}

func (n refNames) document(id int64) string {
	if ref, ok := n.documents[id]; ok {
		return ref
	}
	return fmt.Sprintf("#%d", id)
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh temp-file database with a
// deterministic clock and sequential mutation ids, so traces are identical
// across runs.
//
// Execution flow:
// 1. Create a fresh database and engine
// 2. Create setup entities
// 3. Apply steps, checking expected errors
// 4. Evaluate assertions
//
// A returned error means the scenario could not run at all. Step and
// assertion failures are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	dir, err := os.MkdirTemp("", "stockline-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store: st,
		engine: engine.New(st,
			engine.WithClock(testutil.NewDeterministicClock()),
			engine.WithIDGenerator(testutil.NewSequenceIDs("mut")),
			engine.WithLogger(cfg.logger),
		),
		logger:         cfg.logger.With(zap.String("scenario", scenario.Name)),
		items:          map[string]int64{},
		documents:      map[string]int64{},
		counterparties: map[string]int64{},
		names:          refNames{items: map[int64]string{}, documents: map[int64]string{}},
	}

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}

	actx := &AssertionContext{Store: st, Ctx: ctx, Items: h.items, Documents: h.documents}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// executeSetup creates counterparties, items and documents. Setup is
// assumed to succeed; any error aborts the run.
func (h *Harness) executeSetup(ctx context.Context, setup Setup) error {
	for _, cp := range setup.Counterparties {
		name := cp.Name
		if name == "" {
			name = cp.Ref
		}
		created, err := h.engine.CreateCounterparty(ctx, domain.Counterparty{
			Kind: domain.CounterpartyKind(cp.Kind),
			Name: name,
		})
		if err != nil {
			return fmt.Errorf("counterparty %q: %w", cp.Ref, err)
		}
		h.counterparties[cp.Ref] = created.ID
	}

	for _, it := range setup.Items {
		price, err := domain.ParseMoney("setup", "unit_price", it.UnitPrice)
		if err != nil {
			return fmt.Errorf("item %q: %w", it.Ref, err)
		}
		name := it.Name
		if name == "" {
			name = it.Ref
		}
		created, err := h.engine.CreateItem(ctx, engine.NewItem{
			Name:         name,
			UnitPrice:    price,
			Quantity:     it.Quantity,
			ReorderLevel: it.ReorderLevel,
		})
		if err != nil {
			return fmt.Errorf("item %q: %w", it.Ref, err)
		}
		h.items[it.Ref] = created.ID
		h.names.items[created.ID] = it.Ref
	}

	for _, d := range setup.Documents {
		in := engine.NewDocument{Kind: domain.DocumentKind(d.Kind)}
		if d.Counterparty != "" {
			id := h.counterparties[d.Counterparty]
			in.CounterpartyID = &id
		}
		created, err := h.engine.CreateDocument(ctx, in)
		if err != nil {
			return fmt.Errorf("document %q: %w", d.Ref, err)
		}
		h.documents[d.Ref] = created.ID
		h.names.documents[created.ID] = d.Ref
	}
	return nil
}

// executeStep applies one step and records its outcome. An error matching
// ExpectError is a pass and lands in the trace; any other mismatch is a
// failure.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) {
	events, err := h.apply(ctx, i, step)

	switch {
	case err != nil && step.ExpectError != "":
		code := domain.CodeOf(err)
		if string(code) != step.ExpectError {
			result.AddError(fmt.Sprintf("step %d (%s): expected %s error, got: %v", i, step.Op, step.ExpectError, err))
			return
		}
		result.Trace = append(result.Trace, TraceEvent{Step: i, Op: step.Op, Error: string(code)})
	case err != nil:
		result.AddError(fmt.Sprintf("step %d (%s): %v", i, step.Op, err))
	case step.ExpectError != "":
		result.AddError(fmt.Sprintf("step %d (%s): expected %s error, step succeeded", i, step.Op, step.ExpectError))
		result.Trace = append(result.Trace, events...)
	default:
		result.Trace = append(result.Trace, events...)
	}

	h.logger.Debug("step applied",
		zap.Int("step", i),
		zap.String("op", step.Op),
		zap.Error(err),
	)
}

func (h *Harness) apply(ctx context.Context, i int, step Step) ([]TraceEvent, error) {
	docID := h.documents[step.Document]
	itemID := h.items[step.Item]
	var price *decimal.Decimal
	if step.UnitPrice != "" {
		p, err := domain.ParseMoney(step.Op, "unit_price", step.UnitPrice)
		if err != nil {
			return nil, err
		}
		price = &p
	}

	collect := func(res engine.LineResult, err error) ([]TraceEvent, error) {
		if err != nil {
			return nil, err
		}
		r := NewResult()
		r.addMutation(i, step.Op, res.Mutation, h.names, res.Replayed)
		return r.Trace, nil
	}

	switch step.Op {
	case OpAddLine:
		return collect(h.engine.AddLine(ctx, engine.AddLineRequest{
			DocumentID: docID,
			ItemID:     itemID,
			Quantity:   *step.Quantity,
			UnitPrice:  price,
			RequestKey: step.RequestKey,
		}))
	case OpUpdateLine:
		return collect(h.engine.UpdateLine(ctx, engine.UpdateLineRequest{
			DocumentID: docID,
			ItemID:     itemID,
			Quantity:   step.Quantity,
			UnitPrice:  price,
			RequestKey: step.RequestKey,
		}))
	case OpRemoveLine:
		return collect(h.engine.RemoveLine(ctx, engine.RemoveLineRequest{
			DocumentID: docID,
			ItemID:     itemID,
			RequestKey: step.RequestKey,
		}))
	case OpDeleteDocument:
		res, err := h.engine.DeleteDocument(ctx, engine.DeleteDocumentRequest{
			DocumentID: docID,
			RequestKey: step.RequestKey,
		})
		if err != nil {
			return nil, err
		}
		r := NewResult()
		for _, m := range res.Mutations {
			r.addMutation(i, step.Op, m, h.names, res.Replayed)
		}
		return r.Trace, nil
	case OpReconcile:
		report, err := h.engine.Reconcile(ctx)
		if err != nil {
			return nil, err
		}
		return []TraceEvent{{Step: i, Op: step.Op, Corrected: report.Corrected}}, nil
	case OpForceTotal:
		total, err := domain.ParseMoney(step.Op, "total", step.Total)
		if err != nil {
			return nil, err
		}
		_, err = h.store.DB().ExecContext(ctx,
			`UPDATE documents SET total = ?, version = version + 1 WHERE id = ?`, total, docID)
		if err != nil {
			return nil, fmt.Errorf("force total: %w", err)
		}
		return []TraceEvent{{Step: i, Op: step.Op, Document: step.Document, TotalAfter: domain.FormatMoney(total)}}, nil
	default:
		return nil, fmt.Errorf("unknown op %q", step.Op)
	}
}
