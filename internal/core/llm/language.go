package llm

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectLanguage returns the ISO 639-1 code of text, or "" when the text is
// too short or the language cannot be determined.
func DetectLanguage(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letters := 0

	for _, r := range sample {
		if unicode.IsLetter(r) {
			letters++
		}
	}

	if letters < minLettersForDetect {
		return ""
	}

	language, ok := getDetector().DetectLanguageOf(sample)
	if !ok {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != iso6391Length {
		return ""
	}

	return code
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build()
	})

	return detector
}
