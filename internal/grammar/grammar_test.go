package grammar

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		matches []Match
		want    string
	}{
		{"no matches", "Bonjour", nil, "Bonjour"},
		{
			name:    "single",
			text:    "Il ont mangé.",
			matches: []Match{{Offset: 0, Length: 6, Replacements: []string{"Ils ont", "Elles ont"}}},
			want:    "Ils ont mangé.",
		},
		{
			name: "unordered",
			text: "il ont vu les pomme rouges",
			matches: []Match{
				{Offset: 14, Length: 5, Replacements: []string{"pommes"}},
				{Offset: 0, Length: 6, Replacements: []string{"ils ont"}},
			},
			want: "ils ont vu les pommes rouges",
		},
		{
			name:    "utf16 offsets after accents",
			text:    "Été chaud, il ont",
			matches: []Match{{Offset: 11, Length: 6, Replacements: []string{"ils ont"}}},
			want:    "Été chaud, ils ont",
		},
		{
			name:    "no replacement",
			text:    "abc",
			matches: []Match{{Offset: 0, Length: 1}},
			want:    "abc",
		},
		{
			name: "overlap skipped",
			text: "abcdef",
			matches: []Match{
				{Offset: 0, Length: 3, Replacements: []string{"X"}},
				{Offset: 2, Length: 2, Replacements: []string{"Y"}},
			},
			want: "Xdef",
		},
		{
			name:    "out of range",
			text:    "abc",
			matches: []Match{{Offset: 2, Length: 5, Replacements: []string{"Z"}}},
			want:    "abc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Apply(tt.text, tt.matches); got != tt.want {
				t.Fatalf("Apply() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCorrectorWithMock(t *testing.T) {
	c := NewCorrector(NewMockChecker(DefaultMockRules), "fr", newLogger())
	corrected, matches, err := c.Correct(context.Background(), "Il ont mangé les pommes.")
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if corrected != "Ils ont mangé les pommes." {
		t.Fatalf("unexpected correction %q", corrected)
	}
	if len(matches) != 1 || matches[0].Offset != 0 || matches[0].Length != 6 {
		t.Fatalf("unexpected matches %+v", matches)
	}
}

func TestCorrectorCleanText(t *testing.T) {
	c := NewCorrector(NewMockChecker(DefaultMockRules), "fr", newLogger())
	corrected, matches, err := c.Correct(context.Background(), "Bonjour à tous.")
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if corrected != "Bonjour à tous." || matches == nil || len(matches) != 0 {
		t.Fatalf("expected unchanged text and empty matches, got %q %v", corrected, matches)
	}
}

type failingChecker struct{}

func (failingChecker) Check(context.Context, string, string) ([]Match, error) {
	return nil, errors.New("connection refused")
}

func TestCorrectorUnavailable(t *testing.T) {
	for name, c := range map[string]*Corrector{
		"nil checker":     NewCorrector(nil, "fr", newLogger()),
		"failing checker": NewCorrector(failingChecker{}, "fr", newLogger()),
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := c.Correct(context.Background(), "texte")
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestLanguageToolChecker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/check" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("language") != "fr" || r.PostForm.Get("text") != "Il ont faim" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"matches":[{"message":"Accord","offset":0,"length":6,
			"replacements":[{"value":"Ils ont"},{"value":"Elles ont"}],
			"context":{"text":"Il ont faim","offset":0,"length":6},
			"rule":{"id":"AGREEMENT"}}]}`)
	}))
	defer srv.Close()

	checker := NewLanguageToolChecker(srv.URL+"/", srv.Client())
	matches, err := checker.Check(context.Background(), "Il ont faim", "fr")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	m := matches[0]
	if m.Message != "Accord" || m.Context != "Il ont faim" || m.RuleID != "AGREEMENT" {
		t.Fatalf("unexpected match %+v", m)
	}
	if len(m.Replacements) != 2 || m.Replacements[0] != "Ils ont" {
		t.Fatalf("unexpected replacements %v", m.Replacements)
	}
}

func TestLanguageToolCheckerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewCorrector(NewLanguageToolChecker(srv.URL, srv.Client()), "fr", newLogger())
	if _, _, err := c.Correct(context.Background(), "texte"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestExecChecker(t *testing.T) {
	script := filepath.Join(t.TempDir(), "checker.sh")
	body := "#!/bin/sh\ncat >/dev/null\necho '{\"matches\":[{\"message\":\"m\",\"offset\":0,\"length\":2,\"replacements\":[\"Le\"]}]}'\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	checker, err := NewExecChecker(script)
	if err != nil {
		t.Fatalf("new exec checker: %v", err)
	}
	c := NewCorrector(checker, "fr", newLogger())
	corrected, matches, err := c.Correct(context.Background(), "La chat")
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if corrected != "Le chat" || len(matches) != 1 {
		t.Fatalf("unexpected result %q %+v", corrected, matches)
	}
}

func TestExecCheckerEmptyCommand(t *testing.T) {
	if _, err := NewExecChecker("  "); err == nil {
		t.Fatal("expected error for empty command")
	}
}
