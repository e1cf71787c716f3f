package pipeline

import (
	"regexp"
	"strings"
	"unicode"
)

// =============================================================================
// Text Preprocessing
// =============================================================================

var (
	urlPattern       = regexp.MustCompile(`https?://\S+|www\.\S+`)
	mentionPattern   = regexp.MustCompile(`@(\w+)`)
	hashtagPattern   = regexp.MustCompile(`#(\w+)`)
	retweetPattern   = regexp.MustCompile(`^(?i:rt)\s+`)
	spacePattern     = regexp.MustCompile(`\s+`)
	zeroWidthRemover = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "")
)

// PreprocessResult is the cleaned form of an incoming message.
type PreprocessResult struct {
	CleanText string
	Language  string
	Hashtags  []string
	Mentions  []string
}

// Preprocessor strips social-media noise from raw text before classification.
// Hashtags are segmented into words and kept in the clean text since they
// often carry the only location or event hint in a short message.
type Preprocessor struct{}

// NewPreprocessor creates a preprocessor.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{}
}

// Run cleans text and resolves the message language. A declared language
// wins; otherwise a cheap script heuristic is used.
func (p *Preprocessor) Run(text, declaredLang string) PreprocessResult {
	res := PreprocessResult{}

	for _, m := range hashtagPattern.FindAllStringSubmatch(text, -1) {
		res.Hashtags = append(res.Hashtags, m[1])
	}
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		res.Mentions = append(res.Mentions, m[1])
	}

	clean := zeroWidthRemover.Replace(text)
	clean = retweetPattern.ReplaceAllString(clean, "")
	clean = urlPattern.ReplaceAllString(clean, " ")
	clean = mentionPattern.ReplaceAllString(clean, " ")
	clean = hashtagPattern.ReplaceAllStringFunc(clean, func(tag string) string {
		return " " + segmentHashtag(strings.TrimPrefix(tag, "#")) + " "
	})
	clean = spacePattern.ReplaceAllString(clean, " ")
	res.CleanText = strings.TrimSpace(clean)

	res.Language = declaredLang
	if res.Language == "" {
		res.Language = detectScript(res.CleanText)
	}
	return res
}

// segmentHashtag splits CamelCase hashtags into words: "TurkeyEarthquake"
// becomes "Turkey Earthquake". All-lowercase or all-uppercase tags pass
// through unchanged.
func segmentHashtag(tag string) string {
	var b strings.Builder
	runes := []rune(tag)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// detectScript guesses a language code from the dominant script. It only
// distinguishes scripts that change keyword matching; Latin text defaults
// to English.
func detectScript(text string) string {
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Arabic, r):
			return "ar"
		case unicode.Is(unicode.Devanagari, r):
			return "hi"
		}
	}
	return "en"
}
