package grammar

import (
	"context"
	"fmt"
	"log/slog"
)

// Corrector checks text in a fixed language and applies the resulting matches.
type Corrector struct {
	checker  Checker
	language string
	log      *slog.Logger
}

// NewCorrector accepts a nil checker; every call then fails with ErrUnavailable.
func NewCorrector(checker Checker, language string, log *slog.Logger) *Corrector {
	return &Corrector{
		checker:  checker,
		language: language,
		log:      log.With(slog.String("component", "grammar-corrector")),
	}
}

// Available reports whether a backend is configured.
func (c *Corrector) Available() bool {
	return c != nil && c.checker != nil
}

// Correct returns the corrected text and the ordered matches found in text.
func (c *Corrector) Correct(ctx context.Context, text string) (string, []Match, error) {
	if !c.Available() {
		return "", nil, ErrUnavailable
	}
	matches, err := c.checker.Check(ctx, text, c.language)
	if err != nil {
		c.log.Warn("grammar check failed", slog.String("error", err.Error()))
		return "", nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if matches == nil {
		matches = []Match{}
	}
	return Apply(text, matches), matches, nil
}
