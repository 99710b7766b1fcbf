// Package grammar runs rule-based grammar and style checks over French text
// and applies the suggested corrections.
package grammar

import (
	"context"
	"errors"
	"sort"
	"unicode/utf16"
)

// ErrUnavailable is returned when no grammar checker can serve the request.
var ErrUnavailable = errors.New("correction tool unavailable")

// Match is one flagged issue. Offset and Length are in UTF-16 code units, the
// unit LanguageTool reports.
type Match struct {
	Context      string   `json:"context"`
	Message      string   `json:"message"`
	Replacements []string `json:"replacements"`
	Offset       int      `json:"offset"`
	Length       int      `json:"length"`
	RuleID       string   `json:"rule_id,omitempty"`
}

// Checker is a grammar-check backend. Implementations must be safe for concurrent use.
type Checker interface {
	Check(ctx context.Context, text, language string) ([]Match, error)
}

// Apply returns text with every match replaced by its first suggestion.
// Matches without suggestions, out of range, or overlapping an earlier match are skipped.
func Apply(text string, matches []Match) string {
	if len(matches) == 0 {
		return text
	}
	units := utf16.Encode([]rune(text))
	ordered := append([]Match(nil), matches...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Offset < ordered[j].Offset })

	out := make([]uint16, 0, len(units))
	pos := 0
	for _, m := range ordered {
		if len(m.Replacements) == 0 {
			continue
		}
		if m.Offset < pos || m.Length < 0 || m.Offset+m.Length > len(units) {
			continue
		}
		out = append(out, units[pos:m.Offset]...)
		out = append(out, utf16.Encode([]rune(m.Replacements[0]))...)
		pos = m.Offset + m.Length
	}
	out = append(out, units[pos:]...)
	return string(utf16.Decode(out))
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}
