// Package htmlutils converts feed HTML to plain text and prepares text for
// Telegram messages.
//
// The package handles:
//   - HTML to plain text conversion for feed descriptions
//   - UTF-16 length calculation (Telegram's native encoding)
//   - Splitting long messages on line boundaries
package htmlutils

import (
	stdhtml "html"
	"strings"
	"unicode/utf16"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TelegramMessageLimit is the maximum message length in UTF-16 code units.
const TelegramMessageLimit = 4096

// utf16Len returns the number of UTF-16 code units needed to encode the string.
// Telegram counts message length in UTF-16 code units, not Unicode code points.
func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// skipped elements whose text never reaches the output.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Template: true,
}

// breaking elements start a new line.
var breaking = map[atom.Atom]bool{
	atom.Br: true, atom.P: true, atom.Div: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Section: true, atom.Article: true,
}

// ToText renders an HTML fragment as plain text. Entities are decoded,
// scripts and styles dropped, block elements become line breaks and runs of
// whitespace collapse to single spaces.
func ToText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapse(fragment)
	}

	tokenizer := html.NewTokenizer(strings.NewReader(fragment))

	var (
		sb        strings.Builder
		skipDepth int
	)

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return collapse(sb.String())
		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(tokenizer.Text())
			}
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			a := atom.Lookup(name)

			if skipped[a] {
				skipDepth++
			} else if breaking[a] {
				sb.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			a := atom.Lookup(name)

			if skipped[a] && skipDepth > 0 {
				skipDepth--
			} else if breaking[a] {
				sb.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if breaking[atom.Lookup(name)] {
				sb.WriteByte('\n')
			}
		case html.CommentToken, html.DoctypeToken:
		}
	}
}

// collapse squeezes whitespace inside lines and drops empty lines.
func collapse(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]

	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}

	return strings.Join(out, "\n")
}

// Escape escapes text for Telegram's HTML parse mode.
func Escape(text string) string {
	return stdhtml.EscapeString(text)
}

// SplitMessage splits text into parts of at most limit UTF-16 code units,
// breaking on line boundaries. A single line longer than limit is cut.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = TelegramMessageLimit
	}

	if utf16Len(text) <= limit {
		return []string{text}
	}

	var (
		parts   []string
		current strings.Builder
		size    int
	)

	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, strings.TrimRight(current.String(), "\n"))
			current.Reset()

			size = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf16Len(line)

		if size+n > limit {
			flush()
		}

		for n > limit {
			head := utf16Slice(line, limit)
			if head == "" {
				break
			}

			parts = append(parts, head)
			line = line[len(head):]
			n = utf16Len(line)
		}

		current.WriteString(line)
		size += n
	}

	flush()

	return parts
}

// utf16Slice returns the longest prefix of s that fits in maxUnits UTF-16 code units.
func utf16Slice(s string, maxUnits int) string {
	units := 0

	for i, r := range s {
		w := 1
		if r >= 0x10000 {
			w = 2
		}

		if units+w > maxUnits {
			return s[:i]
		}

		units += w
	}

	return s
}
