package exercise

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	cats := c.Categories()
	if len(cats) != 3 || cats[0] != Grammar || cats[1] != Vocabulary || cats[2] != Oral {
		t.Fatalf("unexpected categories %v", cats)
	}
	for _, q := range c.Questions(Oral) {
		if ExpectedText(q) == q {
			t.Fatalf("oral question %q lacks the instruction prefix", q)
		}
	}
	if !c.Contains(Grammar, "Correct the sentence: 'Il ont mangé les pommes.'") {
		t.Fatal("expected default grammar question")
	}
}

func TestContains(t *testing.T) {
	c := New(map[Category][]string{Oral: {OralPrefix + "Bonjour"}})
	tests := []struct {
		category Category
		question string
		want     bool
	}{
		{Oral, OralPrefix + "Bonjour", true},
		{Oral, "Bonjour", false},
		{Grammar, OralPrefix + "Bonjour", false},
		{"Spelling", "anything", false},
	}
	for _, tt := range tests {
		if got := c.Contains(tt.category, tt.question); got != tt.want {
			t.Fatalf("Contains(%q, %q) = %v, want %v", tt.category, tt.question, got, tt.want)
		}
	}
}

func TestCatalogIsImmutable(t *testing.T) {
	src := map[Category][]string{Grammar: {"q1"}}
	c := New(src)
	src[Grammar][0] = "changed"
	src[Vocabulary] = []string{"new"}

	listed := c.List()
	listed[Grammar][0] = "mutated"
	c.Questions(Grammar)[0] = "mutated again"

	if !c.Contains(Grammar, "q1") || c.Contains(Vocabulary, "new") {
		t.Fatalf("catalog changed through aliasing: %v", c.List())
	}
}

func TestExpectedText(t *testing.T) {
	if got := ExpectedText(OralPrefix + " Bonjour  "); got != "Bonjour" {
		t.Fatalf("unexpected expected text %q", got)
	}
	if got := ExpectedText("Bonjour"); got != "Bonjour" {
		t.Fatalf("questions without prefix should be kept, got %q", got)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exercises.yaml")
	data := []byte(`
exercises:
  Oral:
    - "Repeat this text: Bonjour"
  Grammar:
    - "Correct: 'Nous a fini.'"
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !c.Contains(Oral, "Repeat this text: Bonjour") {
		t.Fatal("expected oral question from file")
	}
	cats := c.Categories()
	if len(cats) != 2 || cats[0] != Grammar || cats[1] != Oral {
		t.Fatalf("unexpected category order %v", cats)
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := map[string]string{
		"empty":          "exercises: {}\n",
		"blank question": "exercises:\n  Grammar:\n    - \"  \"\n",
		"invalid yaml":   "exercises: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "exercises.yaml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
