package parser

import (
	"regexp"
	"strings"
)

const fence = "```"

// StripCodeFence returns the body of the first markdown code block in text, skipping an
// optional language tag such as "json". Text without a fence comes back trimmed.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)

	start := strings.Index(text, fence)
	if start == -1 {
		return text
	}

	body := text[start+len(fence):]
	body = strings.TrimLeft(body, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

	if end := strings.Index(body, fence); end != -1 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// ExtractJSONArray cuts prose around the payload. Whichever of '[' or '{' opens first
// wins and runs to the last matching closer, so a lone object keeps its own bbox array
// inside it.
func ExtractJSONArray(text string) string {
	best := ""
	bestStart := -1
	for _, pair := range [][2]string{{"[", "]"}, {"{", "}"}} {
		startIdx := strings.Index(text, pair[0])
		endIdx := strings.LastIndex(text, pair[1])
		if startIdx == -1 || endIdx <= startIdx {
			continue
		}
		if bestStart == -1 || startIdx < bestStart {
			best, bestStart = text[startIdx:endIdx+1], startIdx
		}
	}
	if bestStart == -1 {
		return text
	}
	return best
}

var keyValueSep = regexp.MustCompile(`"\s*:\s*"`)

// RepairQuotes escapes stray double quotes inside string values, one line at a time.
// On a line holding a `"key": "value"` pair the value runs from the first key/value
// separator to the last quote on the line; unescaped quotes inside that span are escaped.
//
// This handles the common one-field-per-line layout. Lines with several string fields are
// mangled, so callers only use it after a plain decode has failed.
func RepairQuotes(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		loc := keyValueSep.FindStringIndex(line)
		if loc == nil {
			continue
		}
		valueStart := loc[1]
		last := strings.LastIndex(line, `"`)
		if last < valueStart {
			continue
		}
		lines[i] = line[:valueStart] + escapeQuotes(line[valueStart:last]) + line[last:]
	}
	return strings.Join(lines, "\n")
}

// RepairQuotesScan walks the text as a JSON tokenizer would, but inside a string a quote
// only terminates it when the next non-space character is one of , } ] : or end of input.
// Any other quote is escaped.
func RepairQuotesScan(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 16)

	inString := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if !inString {
			b.WriteByte(c)
			if c == '"' {
				inString = true
			}
			continue
		}

		switch c {
		case '\\':
			b.WriteByte(c)
			if i+1 < len(text) {
				i++
				b.WriteByte(text[i])
			}
		case '"':
			if closesString(text, i+1) {
				b.WriteByte(c)
				inString = false
			} else {
				b.WriteString(`\"`)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func closesString(text string, from int) bool {
	for j := from; j < len(text); j++ {
		switch text[j] {
		case ' ', '\t', '\r', '\n':
			continue
		case ',', '}', ']', ':':
			return true
		default:
			return false
		}
	}
	return true
}

// escapeQuotes escapes every double quote in s that is not already escaped.
func escapeQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)

	backslashes := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' && backslashes%2 == 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
		if c == '\\' {
			backslashes++
		} else {
			backslashes = 0
		}
	}
	return b.String()
}
