package textutil

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// namedEntities is applied before the numeric passes so that double-encoded
// sequences like &amp;#39; degrade one level at a time instead of collapsing
// in a single decode. Order is fixed; a map would randomize it.
var namedEntities = []struct{ entity, text string }{
	{"&amp;", "&"},
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&quot;", `"`},
	{"&apos;", "'"},
	{"&nbsp;", " "},
	{"&ndash;", "–"},
	{"&mdash;", "—"},
	{"&hellip;", "…"},
	{"&lsquo;", "‘"},
	{"&rsquo;", "’"},
	{"&ldquo;", "“"},
	{"&rdquo;", "”"},
}

var (
	decimalEntityRe = regexp.MustCompile(`&#(\d+);`)
	hexEntityRe     = regexp.MustCompile(`&#x([0-9a-fA-F]+);`)
	spaceRe         = regexp.MustCompile(`\s+`)
)

// DecodeEntities decodes the common named HTML/XML entities, then decimal
// numeric entities, then hex entities. Unmatched entity syntax passes through
// unchanged; the function never fails.
func DecodeEntities(text string) string {
	decoded := text
	for _, e := range namedEntities {
		decoded = strings.ReplaceAll(decoded, e.entity, e.text)
	}
	decoded = decimalEntityRe.ReplaceAllStringFunc(decoded, func(m string) string {
		n, err := strconv.ParseInt(m[2:len(m)-1], 10, 32)
		if err != nil {
			return m
		}
		return string(rune(n))
	})
	decoded = hexEntityRe.ReplaceAllStringFunc(decoded, func(m string) string {
		n, err := strconv.ParseInt(m[3:len(m)-1], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(n))
	})
	return decoded
}

// CollapseSpace folds runs of whitespace, newlines included, into single
// spaces and trims the ends.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// StripSpace removes all whitespace. URLs cannot legitimately contain any.
func StripSpace(s string) string {
	return spaceRe.ReplaceAllString(s, "")
}

// Truncate clamps s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

var stripPolicy = bluemonday.StrictPolicy()

// StripHTML removes every tag and drops script/style blocks wholesale,
// keeping only text content. Text in the output is entity-escaped, so
// callers decode entities afterwards.
func StripHTML(s string) string {
	return stripPolicy.Sanitize(s)
}
