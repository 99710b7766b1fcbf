package grammar

import (
	"context"
	"sort"
	"strings"
)

// Rule flags every occurrence of Pattern and suggests Replacement.
type Rule struct {
	Pattern     string
	Message     string
	Replacement string
}

// DefaultMockRules covers the agreement mistakes used by the bundled exercises.
var DefaultMockRules = []Rule{
	{Pattern: "Il ont", Message: "Accord sujet-verbe : « ont » demande un sujet pluriel.", Replacement: "Ils ont"},
	{Pattern: "il ont", Message: "Accord sujet-verbe : « ont » demande un sujet pluriel.", Replacement: "ils ont"},
	{Pattern: "les pomme ", Message: "Accord en nombre avec « les ».", Replacement: "les pommes "},
}

type mockChecker struct {
	rules []Rule
}

// NewMockChecker matches literal patterns. It stands in for a LanguageTool server in development.
func NewMockChecker(rules []Rule) Checker {
	return &mockChecker{rules: append([]Rule(nil), rules...)}
}

func (m *mockChecker) Check(ctx context.Context, text, _ string) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var matches []Match
	for _, rule := range m.rules {
		if rule.Pattern == "" {
			continue
		}
		start := 0
		for {
			idx := strings.Index(text[start:], rule.Pattern)
			if idx < 0 {
				break
			}
			at := start + idx
			matches = append(matches, Match{
				Context:      text,
				Message:      rule.Message,
				Replacements: []string{rule.Replacement},
				Offset:       utf16Len(text[:at]),
				Length:       utf16Len(rule.Pattern),
				RuleID:       "MOCK_RULE",
			})
			start = at + len(rule.Pattern)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Offset < matches[j].Offset })
	return matches, nil
}
