package timeparsing

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// nlpParser is the shared natural-language parser. Rule sets are immutable
// after construction, so one instance serves all calls.
var nlpParser *when.Parser

func init() {
	nlpParser = when.New(nil)
	nlpParser.Add(en.All...)
	nlpParser.Add(common.All...)
}

// ParseNaturalLanguage parses expressions like "tomorrow", "two weeks",
// or "next monday" relative to now. Returns an error when no time
// expression is recognized in the input.
func ParseNaturalLanguage(s string, now time.Time) (time.Time, error) {
	result, err := nlpParser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %q: %w", s, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("no time expression found in %q", s)
	}
	return result.Time, nil
}
