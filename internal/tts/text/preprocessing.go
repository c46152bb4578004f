// Package text prepares summary text for the synthesis process.
//
// Summaries come back from the language model as lightly formatted markdown.
// The synthesis model reads every character aloud, so markup is removed and
// whitespace is flattened before the text is handed to the process.
package text

import (
	"regexp"
	"strings"
)

// Regex patterns for markup removal.
const (
	headingRegexPattern    = `(?m)^[ \t]{0,3}#{1,6}[ \t]*`
	bulletRegexPattern     = `(?m)^[ \t]*(?:[-*+•]|\d+[.)])[ \t]+`
	blankLineRegexPattern  = `\n\s*\n`
	whitespaceRegexPattern = `\s+`
	stopRegexPattern       = `([^.!?:;,\s])[ \t]*\n`

	// A delimiter only counts as markup when whitespace, punctuation or a line
	// edge sits outside it and a non-space sits inside it. In-word markers as in
	// 2*3*4 or nilai_awal_x are content.
	emphasisBoundary = `(^|[\s\p{P}\p{S}])`
	emphasisInner    = `(\S(?:[^\n]*?\S)?)`
	emphasisTrailer  = `($|[\s\p{P}\p{S}])`
)

// Emphasis delimiters, longest first so ** is not read as two single stars.
var emphasisDelimiters = []string{"**", "__", "~~", "*", "_", "`"}

// Punctuation and formatting constants.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
)

// Preprocessor normalizes text for speech.
type Preprocessor struct {
	headingPattern    *regexp.Regexp
	bulletPattern     *regexp.Regexp
	emphasisPatterns  []*regexp.Regexp
	blankLinePattern  *regexp.Regexp
	whitespacePattern *regexp.Regexp
	stopPattern       *regexp.Regexp
	punctuation       *strings.Replacer
}

// NewPreprocessor creates a preprocessor with compiled patterns.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		headingPattern:    regexp.MustCompile(headingRegexPattern),
		bulletPattern:     regexp.MustCompile(bulletRegexPattern),
		emphasisPatterns:  compileEmphasisPatterns(),
		blankLinePattern:  regexp.MustCompile(blankLineRegexPattern),
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		stopPattern:       regexp.MustCompile(stopRegexPattern),
		punctuation: strings.NewReplacer(
			emDash, "-",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// PrepareForSpeech strips markdown and returns a single line of text.
// Line breaks that ended a heading or bullet become sentence stops so the
// voice pauses between items.
func (p *Preprocessor) PrepareForSpeech(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}

	cleaned := strings.ReplaceAll(input, "\r\n", "\n")
	cleaned = p.headingPattern.ReplaceAllString(cleaned, "")
	cleaned = p.bulletPattern.ReplaceAllString(cleaned, "")

	cleaned = p.stripEmphasis(cleaned)

	cleaned = p.punctuation.Replace(cleaned)
	cleaned = p.blankLinePattern.ReplaceAllString(strings.TrimSpace(cleaned)+"\n", "\n")
	cleaned = p.stopPattern.ReplaceAllString(cleaned, "$1.\n")
	cleaned = p.whitespacePattern.ReplaceAllString(cleaned, " ")

	return strings.TrimSpace(cleaned)
}

func compileEmphasisPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(emphasisDelimiters))

	for _, delimiter := range emphasisDelimiters {
		quoted := regexp.QuoteMeta(delimiter)
		patterns = append(patterns, regexp.MustCompile(
			`(?m)`+emphasisBoundary+quoted+emphasisInner+quoted+emphasisTrailer,
		))
	}

	return patterns
}

// stripEmphasis removes emphasis markers until none are left. Every replacement
// drops delimiter characters, so the loop ends. Repeated passes handle nested
// markup such as ***x*** and neighbours that share a boundary character.
func (p *Preprocessor) stripEmphasis(input string) string {
	for {
		next := input
		for _, pattern := range p.emphasisPatterns {
			next = pattern.ReplaceAllString(next, "${1}${2}${3}")
		}

		if next == input {
			return next
		}

		input = next
	}
}
