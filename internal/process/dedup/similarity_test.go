package dedup

import (
	"math"
	"testing"
)

const floatTolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func TestSimpleSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical after normalization", a: "Hello, World!", b: "hello world", want: 1},
		{name: "both empty", a: "", b: "", want: 0},
		{name: "one empty", a: "something here", b: "", want: 0},
		{name: "disjoint", a: "apple banana cherry", b: "dog elephant fox", want: 0},
		{name: "half overlap", a: "apple banana", b: "apple cherry", want: 1.0 / 3.0},
		{name: "short tokens ignored", a: "an apple", b: "to apple", want: 1},
		{
			name: "cyrillic extra word",
			a:    "Центральный банк повысил ключевую ставку до шестнадцати процентов",
			b:    "Центральный банк повысил ключевую ставку до шестнадцати процентов сегодня",
			want: 7.0 / 8.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SimpleSimilarity(tt.a, tt.b); !almostEqual(got, tt.want) {
				t.Errorf("SimpleSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDetailedSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical", a: "Markets rally worldwide", b: "markets rally worldwide", want: 1},
		{name: "stop words only", a: "the and for", b: "the and for", want: 0},
		{name: "empty", a: "", b: "", want: 0},
		{name: "dash splits compound", a: "north-east storm", b: "north east storm", want: 1},
		{name: "quotes ignored", a: "«Газпром» отчитался", b: "\"Газпром\" отчитался", want: 1},
		// A={apple,banana,cherry}, B={apple,banana}: jaccard 2/3, coverage 2/3.
		{name: "subset", a: "apple banana cherry", b: "apple banana", want: 2.0 / 3.0},
		{
			name: "cyrillic extra word",
			a:    "Центральный банк повысил ключевую ставку до шестнадцати процентов",
			b:    "Центральный банк повысил ключевую ставку до шестнадцати процентов сегодня",
			want: 0.875,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetailedSimilarity(tt.a, tt.b); !almostEqual(got, tt.want) {
				t.Errorf("DetailedSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilarityBoundsAndSymmetry(t *testing.T) {
	pairs := [][2]string{
		{"Rate decision due Thursday", "Thursday rate decision announced"},
		{"Новый закон о связи", "Закон о связи принят"},
		{"", "non empty text"},
		{"same same same", "same"},
	}

	scorers := map[string]func(a, b string) float64{
		"simple":   SimpleSimilarity,
		"detailed": DetailedSimilarity,
		"edit":     EditSimilarity,
	}

	for name, score := range scorers {
		for _, p := range pairs {
			ab, ba := score(p[0], p[1]), score(p[1], p[0])
			if ab < 0 || ab > 1 {
				t.Errorf("%s(%q, %q) = %v out of range", name, p[0], p[1], ab)
			}

			if !almostEqual(ab, ba) {
				t.Errorf("%s not symmetric for %q / %q: %v vs %v", name, p[0], p[1], ab, ba)
			}
		}
	}
}

func TestEditSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "both empty", a: "", b: "", want: 1},
		{name: "one empty", a: "abc", b: "", want: 0},
		{name: "identical", a: "kitten", b: "kitten", want: 1},
		{name: "classic", a: "kitten", b: "sitting", want: 4.0 / 7.0},
		{name: "runes not bytes", a: "кот", b: "код", want: 2.0 / 3.0},
		{name: "case and padding ignored", a: "  Example News ", b: "example news", want: 1},
		{name: "whitespace only", a: "   ", b: "", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EditSimilarity(tt.a, tt.b); !almostEqual(got, tt.want) {
				t.Errorf("EditSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"flaw", "lawn", 2},
		{"intention", "execution", 5},
	}

	for _, tt := range tests {
		if got := Levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
