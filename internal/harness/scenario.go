package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stockline/internal/domain"
)

// Scenario is a consistency-engine test: entities to create, line
// mutations to apply, and the state expected afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup creates the entities steps refer to.
	Setup Setup `yaml:"setup"`

	// Steps are applied in order through the engine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Setup lists the entities a scenario starts from. Each has a ref that
// steps and assertions use instead of database ids.
type Setup struct {
	Items          []ItemSetup         `yaml:"items"`
	Counterparties []CounterpartySetup `yaml:"counterparties,omitempty"`
	Documents      []DocumentSetup     `yaml:"documents"`
}

// ItemSetup creates an item with its initial stock.
type ItemSetup struct {
	Ref          string `yaml:"ref"`
	Name         string `yaml:"name,omitempty"`
	Quantity     int64  `yaml:"quantity"`
	ReorderLevel int64  `yaml:"reorder_level"`
	UnitPrice    string `yaml:"unit_price"`
}

// CounterpartySetup creates a customer or supplier.
type CounterpartySetup struct {
	Ref  string `yaml:"ref"`
	Kind string `yaml:"kind"`
	Name string `yaml:"name,omitempty"`
}

// DocumentSetup creates an empty document.
type DocumentSetup struct {
	Ref          string `yaml:"ref"`
	Kind         string `yaml:"kind"`
	Counterparty string `yaml:"counterparty,omitempty"`
}

// Step is one operation. Quantity is a pointer so update_line can change
// only the price.
type Step struct {
	Op          string `yaml:"op"`
	Document    string `yaml:"document,omitempty"`
	Item        string `yaml:"item,omitempty"`
	Quantity    *int64 `yaml:"quantity,omitempty"`
	UnitPrice   string `yaml:"unit_price,omitempty"`
	RequestKey  string `yaml:"request_key,omitempty"`
	Total       string `yaml:"total,omitempty"`
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step operations.
const (
	OpAddLine        = "add_line"
	OpUpdateLine     = "update_line"
	OpRemoveLine     = "remove_line"
	OpDeleteDocument = "delete_document"
	OpReconcile      = "reconcile"
	// OpForceTotal overwrites a stored document total without going
	// through the engine, the way a bulk import would.
	OpForceTotal = "force_total"
)

// Assertion validates final state.
type Assertion struct {
	// Type is one of item_quantity, document_total, open_alerts,
	// alert_count, alert_notes_contain, mutation_count.
	Type string `yaml:"type"`

	Item     string `yaml:"item,omitempty"`
	Document string `yaml:"document,omitempty"`

	// Equals is the expected quantity or total, as written in YAML.
	Equals string `yaml:"equals,omitempty"`

	// Count is used by open_alerts, alert_count and mutation_count.
	Count *int `yaml:"count,omitempty"`

	// Text is used by alert_notes_contain.
	Text string `yaml:"text,omitempty"`
}

// Assertion type constants.
const (
	AssertItemQuantity      = "item_quantity"
	AssertDocumentTotal     = "document_total"
	AssertOpenAlerts        = "open_alerts"
	AssertAlertCount        = "alert_count"
	AssertAlertNotesContain = "alert_notes_contain"
	AssertMutationCount     = "mutation_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and that every ref resolves.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	items := map[string]bool{}
	for i, it := range s.Setup.Items {
		if it.Ref == "" {
			return fmt.Errorf("setup.items[%d]: ref is required", i)
		}
		if items[it.Ref] {
			return fmt.Errorf("setup.items[%d]: duplicate ref %q", i, it.Ref)
		}
		if it.UnitPrice == "" {
			return fmt.Errorf("setup.items[%d]: unit_price is required", i)
		}
		items[it.Ref] = true
	}
	counterparties := map[string]bool{}
	for i, cp := range s.Setup.Counterparties {
		if cp.Ref == "" {
			return fmt.Errorf("setup.counterparties[%d]: ref is required", i)
		}
		if !domain.CounterpartyKind(cp.Kind).Valid() {
			return fmt.Errorf("setup.counterparties[%d]: unknown kind %q", i, cp.Kind)
		}
		counterparties[cp.Ref] = true
	}
	docs := map[string]bool{}
	for i, d := range s.Setup.Documents {
		if d.Ref == "" {
			return fmt.Errorf("setup.documents[%d]: ref is required", i)
		}
		if docs[d.Ref] {
			return fmt.Errorf("setup.documents[%d]: duplicate ref %q", i, d.Ref)
		}
		if !domain.DocumentKind(d.Kind).Valid() {
			return fmt.Errorf("setup.documents[%d]: unknown kind %q", i, d.Kind)
		}
		if d.Counterparty != "" && !counterparties[d.Counterparty] {
			return fmt.Errorf("setup.documents[%d]: unknown counterparty %q", i, d.Counterparty)
		}
		docs[d.Ref] = true
	}

	for i, st := range s.Steps {
		if err := validateStep(st, items, docs); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, items, docs); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(st Step, items, docs map[string]bool) error {
	needDoc := func() error {
		if !docs[st.Document] {
			return fmt.Errorf("%s: unknown document %q", st.Op, st.Document)
		}
		return nil
	}
	needItem := func() error {
		if !items[st.Item] {
			return fmt.Errorf("%s: unknown item %q", st.Op, st.Item)
		}
		return nil
	}

	switch st.Op {
	case OpAddLine:
		if st.Quantity == nil {
			return fmt.Errorf("add_line: quantity is required")
		}
		if err := needDoc(); err != nil {
			return err
		}
		return needItem()
	case OpUpdateLine, OpRemoveLine:
		if err := needDoc(); err != nil {
			return err
		}
		return needItem()
	case OpDeleteDocument:
		return needDoc()
	case OpForceTotal:
		if st.Total == "" {
			return fmt.Errorf("force_total: total is required")
		}
		return needDoc()
	case OpReconcile:
		return nil
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
}

func validateAssertion(a Assertion, items, docs map[string]bool) error {
	switch a.Type {
	case AssertItemQuantity:
		if !items[a.Item] {
			return fmt.Errorf("item_quantity: unknown item %q", a.Item)
		}
		if a.Equals == "" {
			return fmt.Errorf("item_quantity: equals is required")
		}
	case AssertDocumentTotal:
		if !docs[a.Document] {
			return fmt.Errorf("document_total: unknown document %q", a.Document)
		}
		if a.Equals == "" {
			return fmt.Errorf("document_total: equals is required")
		}
	case AssertOpenAlerts, AssertAlertCount:
		if !items[a.Item] {
			return fmt.Errorf("%s: unknown item %q", a.Type, a.Item)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative", a.Type)
		}
	case AssertAlertNotesContain:
		if !items[a.Item] {
			return fmt.Errorf("alert_notes_contain: unknown item %q", a.Item)
		}
		if a.Text == "" {
			return fmt.Errorf("alert_notes_contain: text is required")
		}
	case AssertMutationCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("mutation_count: count must be non-negative")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
