package textnorm

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"   ", ""},
		{"Hello, World!", "hello world"},
		{"  I've   been\twaiting... ", "i've been waiting"},
		{"Cześć ŚWIECIE", "cześć świecie"},
		{"snake_case stays", "snake_case stays"},
		{"--", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	if got := Tokenize("  "); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}

	got := Tokenize("The quick, brown fox.")
	expected := []string{"the", "quick", "brown", "fox"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestContainsWords(t *testing.T) {
	hay := []string{"i", "want", "to", "cancel"}

	tests := []struct {
		name     string
		needle   []string
		expected bool
	}{
		{"empty", nil, true},
		{"head", []string{"i", "want"}, true},
		{"middle", []string{"want", "to"}, true},
		{"tail", []string{"cancel"}, true},
		{"gap", []string{"i", "to"}, false},
		{"partial word", []string{"can"}, false},
		{"longer than haystack", []string{"i", "want", "to", "cancel", "now"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainsWords(hay, tt.needle); got != tt.expected {
				t.Errorf("ContainsWords(%v) = %v, want %v", tt.needle, got, tt.expected)
			}
		})
	}
}

func TestJaccard(t *testing.T) {
	a := WordSet([]string{"a", "b", "c"})
	b := WordSet([]string{"b", "c", "d"})

	if got := Jaccard(a, b); got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
	if got := Jaccard(a, a); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if got := Jaccard(WordSet(nil), WordSet(nil)); got != 0 {
		t.Errorf("expected 0 for empty sets, got %v", got)
	}
}

func TestTailRunes(t *testing.T) {
	if got := TailRunes("abcdef", 3); got != "def" {
		t.Errorf("expected def, got %q", got)
	}
	if got := TailRunes("żółw", 10); got != "żółw" {
		t.Errorf("expected whole string, got %q", got)
	}
	if got := TailRunes("żółw", 2); got != "łw" {
		t.Errorf("expected łw, got %q", got)
	}
}
