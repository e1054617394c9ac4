package generate

import (
	"encoding/json"
	"strings"
	"unicode"
)

// Mode selects which JSON container Sanitize extracts.
type Mode int

const (
	// ModeObject extracts the outermost {...}.
	ModeObject Mode = iota
	// ModeArray extracts the outermost [...], or an object wrapping one.
	ModeArray
)

// sanitizeStep is one transformation applied to raw model output.
type sanitizeStep struct {
	name string
	fn   func(s string, mode Mode) string
}

// sanitizeSteps run in order. Later steps assume the earlier ones ran.
var sanitizeSteps = []sanitizeStep{
	{"strip_fences", stripFences},
	{"extract_container", extractContainer},
	{"normalize_punctuation", normalizePunctuation},
	{"strip_control", stripControl},
}

// Sanitize turns a model response into text that should decode as JSON.
// It does not guarantee validity: truncated output stays truncated.
func Sanitize(text string, mode Mode) string {
	for _, st := range sanitizeSteps {
		text = st.fn(text, mode)
	}
	return text
}

// stripFences returns the body of the first markdown code fence, dropping a
// language tag such as ```json. Text without fences is returned trimmed.
func stripFences(s string, _ Mode) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(rest[:nl]); !strings.ContainsAny(tag, "{[") {
			rest = rest[nl+1:]
		}
	} else {
		rest = strings.TrimLeftFunc(rest, unicode.IsLetter)
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// extractContainer cuts the first top-level container that decodes as JSON,
// ignoring brackets inside JSON strings. Prose such as "fields in {braces}"
// ahead of the payload is skipped. When no container decodes, the first one
// is returned, and an unbalanced container runs to the end of input.
func extractContainer(s string, mode Mode) string {
	openers := "{"
	if mode == ModeArray {
		openers = "[{"
	}

	first := ""
	for from := 0; from < len(s); {
		i := strings.IndexAny(s[from:], openers)
		if i < 0 {
			break
		}
		start := from + i
		span := balancedSpan(s, start)
		if first == "" {
			first = span
		}
		if json.Valid([]byte(stripControl(normalizePunctuation(span, mode), mode))) {
			return span
		}
		from = start + len(span)
	}
	if first == "" {
		return s
	}
	return first
}

// balancedSpan returns the container opening at s[start]. A stray closer ends
// the span early; an unclosed container runs to the end of s.
func balancedSpan(s string, start int) string {
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 {
				return s[start:i]
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

var punctuation = map[rune]string{
	'‘': "'", '’': "'", '‚': "'", '‛': "'",
	'–': "-", '—': "-", '−': "-",
	'…':      "...",
	'\u00a0': " ", '\u202f': " ", '\u2009': " ",
}

func isSmartDoubleQuote(r rune) bool {
	switch r {
	case '“', '”', '„', '‟', '«', '»':
		return true
	}
	return false
}

// normalizePunctuation maps typographic punctuation to ASCII. Smart double
// quotes inside an ASCII-delimited string become \" so the string stays
// intact; outside strings they become plain quotes and delimit a string that
// the next smart quote closes.
func normalizePunctuation(s string, _ Mode) string {
	var (
		sb       strings.Builder
		inString bool
		curly    bool
		escaped  bool
	)
	sb.Grow(len(s))
	for _, r := range s {
		if isSmartDoubleQuote(r) {
			switch {
			case !inString:
				inString, curly = true, true
				sb.WriteByte('"')
			case curly:
				inString, curly = false, false
				sb.WriteByte('"')
			default:
				sb.WriteString(`\"`)
			}
			escaped = false
			continue
		}
		if rep, ok := punctuation[r]; ok {
			sb.WriteString(rep)
			escaped = false
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				if curly {
					sb.WriteString(`\"`)
					continue
				}
				inString = false
			}
		} else if r == '"' {
			inString, curly = true, false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// stripControl removes control and zero-width characters. Inside strings,
// raw newlines, carriage returns and tabs are escaped instead.
func stripControl(s string, _ Mode) string {
	var (
		sb       strings.Builder
		inString bool
		escaped  bool
	)
	sb.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\ufeff', '\u200b', '\u200c', '\u200d':
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			case r == '\n':
				sb.WriteString(`\n`)
				continue
			case r == '\r':
				sb.WriteString(`\r`)
				continue
			case r == '\t':
				sb.WriteString(`\t`)
				continue
			case unicode.IsControl(r):
				continue
			}
			sb.WriteRune(r)
			continue
		}
		if r == '"' {
			inString = true
		} else if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
