package optimize

import (
	"strings"
	"unicode"
)

// postProcess collapses runs of horizontal whitespace to a single space,
// preserves line breaks, trims trailing whitespace per line, and
// re-capitalizes the first alphabetic character following sentence-ending
// punctuation, per spec.md §4.7.
func postProcess(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = collapseHorizontalSpace(strings.TrimRight(line, " \t"))
	}
	joined := strings.Join(lines, "\n")
	return recapitalizeSentences(joined)
}

func collapseHorizontalSpace(line string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range line {
		if r == ' ' || r == '\t' {
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func recapitalizeSentences(text string) string {
	runes := []rune(text)
	capitalizeNext := true
	for i, r := range runes {
		if capitalizeNext && unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			capitalizeNext = false
			continue
		}
		if r == '.' || r == '!' || r == '?' {
			// Only a sentence-ending punctuation followed by whitespace (or
			// end of string) starts a new sentence; "file.txt" and "3.5"
			// must not trigger a capitalization.
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				capitalizeNext = true
			}
			continue
		}
		if capitalizeNext && (r == ' ' || r == '\n' || r == '\t') {
			continue
		}
		if capitalizeNext {
			capitalizeNext = false
		}
	}
	return string(runes)
}

// directiveText renders the output-language directive appended after a
// single blank line following the optimized body, per spec.md §6.
func directiveText(format DirectiveFormat, lang string) string {
	if lang == "" || format == "" || format == DirectiveNone {
		return ""
	}
	titled := strings.ToUpper(lang[:1]) + lang[1:]
	switch format {
	case DirectiveBracketed:
		return "[output_language: " + lang + "]"
	case DirectiveInstructive:
		return "Respond in " + titled + "."
	case DirectiveXML:
		return "<output_language>" + lang + "</output_language>"
	case DirectiveNatural:
		return "Please respond in " + titled + "."
	default:
		return ""
	}
}

// appendDirective joins body and directive with a single blank line, per
// spec.md §6.
func appendDirective(body, directive string) string {
	if directive == "" {
		return body
	}
	return body + "\n\n" + directive
}
