// Package profanity flags listing text that contains disallowed words.
//
// Two checks run over the same input:
//
//   - literal words, compared against the lower-cased text split on whitespace;
//   - regular expressions for inflected and obfuscated forms, matched against
//     the lower-cased text with every run of non-word characters collapsed to
//     a single space.
//
// The two normalisations differ on purpose: a literal is only caught when it
// stands alone between spaces, while the patterns see through punctuation.
package profanity

import (
	"fmt"
	"regexp"
	"strings"
)

// Go's \w and \b are ASCII-only, so the patterns below spell out Unicode word
// characters and use a leading space or start of text as the word boundary.
var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

var defaultWords = []string{
	"хуй", "пизда", "блядь",
	"нахуй", "срань", "говно", "гавно", "гімно",
	"сраний", "їбаний", "йобаний", "ебаный",
}

var defaultPatterns = []string{
	`(?:^| )ху[йиюе][\p{L}\p{N}_]*`,
	`(?:^| )п[ие]зд[ауы][\p{L}\p{N}_]*`,
	`(?:^| )бля[дть][\p{L}\p{N}_]*`,
	`(?:^| )[еи]ба[нт][аыуоий]*(?: |$)`,
	`(?:^| )сра[нт][аыуоий]*(?: |$)`,
}

// Classifier is immutable once built and safe for concurrent use.
type Classifier struct {
	words    map[string]struct{}
	patterns []*regexp.Regexp
}

// New compiles a Classifier from literal words and regular expressions.
func New(words, patterns []string) (*Classifier, error) {
	c := &Classifier{
		words:    make(map[string]struct{}, len(words)),
		patterns: make([]*regexp.Regexp, 0, len(patterns)),
	}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		c.words[w] = struct{}{}
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		c.patterns = append(c.patterns, re)
	}
	return c, nil
}

// MustNew is like New but panics on an invalid pattern.
func MustNew(words, patterns []string) *Classifier {
	c, err := New(words, patterns)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultClassifier = MustNew(defaultWords, defaultPatterns)

// Default returns the classifier built from the built-in word and pattern lists.
func Default() *Classifier { return defaultClassifier }

// IsProfane reports whether text matches the built-in lists.
func IsProfane(text string) bool { return defaultClassifier.IsProfane(text) }

// IsProfane returns true if any literal word or any pattern matches text.
func (c *Classifier) IsProfane(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)

	for _, token := range strings.Fields(lower) {
		if _, ok := c.words[token]; ok {
			return true
		}
	}

	normalized := strings.TrimSpace(nonWord.ReplaceAllString(lower, " "))
	for _, re := range c.patterns {
		if re.MatchString(normalized) {
			return true
		}
	}
	return false
}
