package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
)

const normalizePromptTemplate = `You normalize news items from RSS feeds. There are %d items below, each prefixed with [index].
For every item return an object with these fields:
- index: the item's index
- title: a concise, neutral headline in %s
- summary: one or two sentences in %s
- original_title, original_summary: the same in the item's original language
- language: ISO 639-1 code of the original language
- topics, tags: short lists of keywords
- entities: {"organizations": [], "people": [], "products": []}
- duplicate_hint: a short canonical description of the event, used to spot the same story from other outlets
- theme: one of %s
- importance: integer from 0 to 100
Respond with a JSON object {"results": [...]} and nothing else.`

func buildNormalizePrompt(targetLanguage string, count int) string {
	themes := make([]string, 0, len(domain.Themes))
	for _, t := range domain.Themes {
		themes = append(themes, string(t))
	}

	return fmt.Sprintf(normalizePromptTemplate, count, targetLanguage, targetLanguage, strings.Join(themes, ", "))
}

func buildItemText(index int, item domain.RawItem) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "[%d] ", index)

	if item.SourceName != "" {
		fmt.Fprintf(&sb, "(Source: %s) ", item.SourceName)
	}

	sb.WriteString(item.Title)

	if content := strings.TrimSpace(item.Content); content != "" {
		sb.WriteString("\n")
		sb.WriteString(truncate(content, maxContentRunes))
	}

	return sb.String()
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	runes := []rune(s)

	return string(runes[:limit]) + "..."
}
