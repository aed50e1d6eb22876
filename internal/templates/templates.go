// Package templates resolves bot comment texts. Defaults are compiled in;
// a TOML pack file and the rules document may both override them, rules
// winning over the pack.
package templates

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

// Template keys used by the triage and grooming engines.
const (
	KeyRequestMoreInfo      = "request_more_info"
	KeyRedactionNotice      = "redaction_notice"
	KeyTriagedBacklogNotice = "triaged_backlog_notice"
	KeyBacklogAddedNotice   = "backlog_added_notice"
	KeyGateBlockedNotice    = "backlog_gate_blocked_notice"
	KeyEscalationNotice     = "escalation_notice"
	KeyLabelAdded           = "label_added"
	KeyNeedsWorkNotice      = "needs_work_notice"
)

// Builtin contains the default comment texts compiled into the binary.
var Builtin = map[string]string{
	KeyRequestMoreInfo:      "Please update the issue with more information",
	KeyRedactionNotice:      "Sensitive content was detected and redacted.",
	KeyTriagedBacklogNotice: "This issue has been marked Triaged and placed in Backlog.",
	KeyBacklogAddedNotice:   "Added to backlog",
	KeyGateBlockedNotice:    "Backlog gate blocked — missing info",
	KeyEscalationNotice:     "Issue escalated to oncall",
	KeyLabelAdded:           "Added missing Triaged",
	KeyNeedsWorkNotice:      "Assigned for rework.",
}

// UserTemplates holds comment texts loaded from a pack file.
type UserTemplates struct {
	Templates map[string]string `toml:"templates"`
}

// LoadPack loads comment texts from a TOML pack file if it exists.
func LoadPack(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator configuration
	if os.IsNotExist(err) {
		return nil, nil // No pack file, that's fine
	}
	if err != nil {
		return nil, fmt.Errorf("read template pack: %w", err)
	}

	var user UserTemplates
	if err := toml.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("parse template pack %s: %w", path, err)
	}
	return user.Templates, nil
}

// Catalog is the merged view of builtin, pack, and rules-supplied texts.
type Catalog struct {
	texts map[string]string
}

// NewCatalog merges the builtin texts with a pack file and rules overrides.
// Precedence, lowest to highest: builtin, pack, rules.
func NewCatalog(packPath string, overrides map[string]string) (*Catalog, error) {
	texts := make(map[string]string, len(Builtin))
	for key, text := range Builtin {
		texts[key] = text
	}

	pack, err := LoadPack(packPath)
	if err != nil {
		return nil, err
	}
	for key, text := range pack {
		texts[key] = text
	}
	for key, text := range overrides {
		texts[key] = text
	}
	return &Catalog{texts: texts}, nil
}

// Text returns the comment body for key. Unknown keys return the empty
// string; callers treat that as "post nothing".
func (c *Catalog) Text(key string) string {
	return c.texts[key]
}

// Keys returns all known template keys, sorted.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.texts))
	for key := range c.texts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// IsBuiltin reports whether key has a compiled-in default.
func IsBuiltin(key string) bool {
	_, ok := Builtin[key]
	return ok
}
