// Package catalog holds the practice sentences offered to learners.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pronunciation-practice-service/internal/schema"
)

// ErrEmpty is returned when a catalog file defines no sentences.
var ErrEmpty = errors.New("catalog has no sentences")

// Sentence is one practice prompt.
type Sentence struct {
	ID    string `yaml:"id" json:"id" validate:"required,max=64"`
	Text  string `yaml:"text" json:"text" validate:"required,utf8,max=1024"`
	Level string `yaml:"level" json:"level,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Focus string `yaml:"focus" json:"focus,omitempty" validate:"max=64"`
}

type file struct {
	Sentences []Sentence `yaml:"sentences"`
}

// Catalog is an immutable, ordered set of sentences.
type Catalog struct {
	sentences []Sentence
	byID      map[string]int
}

var defaultSentences = []Sentence{
	{ID: "th-1", Text: "I think those three things are worth it.", Level: "beginner", Focus: "th"},
	{ID: "vw-1", Text: "We visited the village every winter.", Level: "beginner", Focus: "v/w"},
	{ID: "lr-1", Text: "The red lorry rolled along the road.", Level: "intermediate", Focus: "l/r"},
	{ID: "ing-1", Text: "She is singing and dancing in the morning.", Level: "beginner", Focus: "-ing"},
	{ID: "ed-1", Text: "He walked home and opened the window.", Level: "intermediate", Focus: "-ed"},
	{ID: "s-1", Text: "She sells sea shells by the sea shore.", Level: "advanced", Focus: "s/sh"},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, _ := New(defaultSentences)
	return c
}

// New builds a catalog, rejecting invalid or duplicate entries.
func New(sentences []Sentence) (*Catalog, error) {
	if len(sentences) == 0 {
		return nil, ErrEmpty
	}
	v := schema.New()
	c := &Catalog{
		sentences: make([]Sentence, 0, len(sentences)),
		byID:      make(map[string]int, len(sentences)),
	}
	for i, s := range sentences {
		if err := v.Validate(s); err != nil {
			return nil, fmt.Errorf("sentence %d: %w", i, err)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("sentence %d: duplicate id %q", i, s.ID)
		}
		c.byID[s.ID] = len(c.sentences)
		c.sentences = append(c.sentences, s)
	}
	return c, nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(f.Sentences)
}

// Load reads the catalog at path, or returns Default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// All returns the sentences in file order.
func (c *Catalog) All() []Sentence {
	out := make([]Sentence, len(c.sentences))
	copy(out, c.sentences)
	return out
}

// Get looks a sentence up by ID.
func (c *Catalog) Get(id string) (Sentence, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Sentence{}, false
	}
	return c.sentences[i], true
}

// Len returns the number of sentences.
func (c *Catalog) Len() int {
	return len(c.sentences)
}
