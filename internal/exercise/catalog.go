// Package exercise holds the read-only registry of practice exercises.
package exercise

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type Category string

const (
	Grammar    Category = "Grammar"
	Vocabulary Category = "Vocabulary"
	Oral       Category = "Oral"
)

// OralPrefix precedes the text to repeat in every oral question.
const OralPrefix = "Repeat this text: "

// Exercise is identified by its (category, question) pair.
type Exercise struct {
	Category Category `json:"category" yaml:"category"`
	Question string   `json:"question" yaml:"question"`
}

// IsOral reports whether answers are scored from a transcription.
func (c Category) IsOral() bool {
	return c == Oral
}

// ExpectedText strips the oral instruction prefix from question.
func ExpectedText(question string) string {
	return strings.TrimSpace(strings.Replace(question, OralPrefix, "", 1))
}

// Catalog is immutable once built and safe for concurrent readers.
type Catalog struct {
	order     []Category
	questions map[Category][]string
}

var defaultQuestions = map[Category][]string{
	Grammar: {
		"Correct the sentence: 'Il ont mangé les pommes.'",
		"Rewrite this sentence in the passé composé: 'Je mange une pomme.'",
	},
	Vocabulary: {
		"Find a synonym for 'rapide'.",
		"Write a sentence using the word 'éloquent'.",
	},
	Oral: {
		OralPrefix + "Les chaussettes de l'archiduchesse sont-elles sèches, archi-sèches ?",
		OralPrefix + "Un chasseur sachant chasser doit savoir chasser sans son chien.",
	},
}

// Default returns the bundled catalog.
func Default() *Catalog {
	return New(defaultQuestions)
}

// New copies questions; later changes to the map do not affect the catalog.
func New(questions map[Category][]string) *Catalog {
	c := &Catalog{questions: make(map[Category][]string, len(questions))}
	for category, list := range questions {
		c.questions[category] = append([]string(nil), list...)
		c.order = append(c.order, category)
	}
	sort.Slice(c.order, func(i, j int) bool {
		ri, rj := categoryRank(c.order[i]), categoryRank(c.order[j])
		if ri != rj {
			return ri < rj
		}
		return c.order[i] < c.order[j]
	})
	return c
}

func categoryRank(c Category) int {
	switch c {
	case Grammar:
		return 0
	case Vocabulary:
		return 1
	case Oral:
		return 2
	default:
		return 3
	}
}

type fileFormat struct {
	Exercises map[Category][]string `yaml:"exercises"`
}

// Load reads a catalog from a YAML file of the form:
//
//	exercises:
//	  Grammar:
//	    - "..."
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exercise catalog: %w", err)
	}
	var file fileFormat
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse exercise catalog: %w", err)
	}
	if len(file.Exercises) == 0 {
		return nil, fmt.Errorf("exercise catalog %s is empty", path)
	}
	for category, list := range file.Exercises {
		if strings.TrimSpace(string(category)) == "" {
			return nil, fmt.Errorf("exercise catalog has an unnamed category")
		}
		for _, q := range list {
			if strings.TrimSpace(q) == "" {
				return nil, fmt.Errorf("exercise catalog category %s has an empty question", category)
			}
		}
	}
	return New(file.Exercises), nil
}

// Contains reports whether question is registered under category.
func (c *Catalog) Contains(category Category, question string) bool {
	for _, q := range c.questions[category] {
		if q == question {
			return true
		}
	}
	return false
}

func (c *Catalog) Categories() []Category {
	return append([]Category(nil), c.order...)
}

// Questions returns a copy of the questions registered under category.
func (c *Catalog) Questions(category Category) []string {
	return append([]string(nil), c.questions[category]...)
}

// List returns a copy of the whole catalog.
func (c *Catalog) List() map[Category][]string {
	out := make(map[Category][]string, len(c.questions))
	for category, list := range c.questions {
		out[category] = append([]string(nil), list...)
	}
	return out
}
