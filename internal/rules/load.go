package rules

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the triage rules document at path. A missing or
// empty file is an error; the caller decides whether that is fatal.
func Load(path string) (*TriageRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("rules file %s is empty", path)
	}
	var r TriageRules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	return &r, nil
}

// LoadGrooming reads and parses the grooming rules document at path.
func LoadGrooming(path string) (*GroomingRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading grooming rules file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("grooming rules file %s is empty", path)
	}
	var g GroomingRules
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing grooming rules file %s: %w", path, err)
	}
	return &g, nil
}
