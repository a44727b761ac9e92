package harness

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindScenarios returns the YAML scenario files under dir, in lexical
// order. A non-empty filter is a glob matched against the file name
// without its extension.
func FindScenarios(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Golden files live beside scenarios and are never scenarios.
			if path != dir && d.Name() == "golden" {
				return fs.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// GoldenPath returns where the golden trace for a scenario file lives:
// a golden/ directory next to the scenario, named after the scenario.
func GoldenPath(scenarioFile string, scenario *Scenario) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", scenario.Name+".golden")
}

// CompareGolden reports whether result's trace matches the golden file
// byte for byte.
func CompareGolden(path string, scenario *Scenario, result *Result) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	got, err := MarshalTrace(scenario.Name, result)
	if err != nil {
		return false, err
	}
	return string(want) == string(got), nil
}

// WriteGolden regenerates the golden file for a scenario.
func WriteGolden(path string, scenario *Scenario, result *Result) error {
	data, err := MarshalTrace(scenario.Name, result)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}
