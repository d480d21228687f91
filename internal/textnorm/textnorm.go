// Package textnorm cleans raw Japanese speech-to-text output before intent
// classification.
package textnorm

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	fullWidthSpace = "　"
	terminalMarks  = "。.!?！？"
	defaultMark    = "。"
)

var multiSpace = regexp.MustCompile(` {2,}`)

// Replacement maps a case-sensitive spoken form to its canonical term.
type Replacement struct {
	From string
	To   string
}

// DefaultReplacements covers the informal readings Whisper tends to emit for
// plan types and clinic vocabulary.
func DefaultReplacements() []Replacement {
	return []Replacement{
		{From: "hmo", To: "HMO"},
		{From: "ppo", To: "PPO"},
		{From: "じこふたん", To: "自己負担"},
		{From: "しんかん", To: "新患"},
		{From: "インシュアランス", To: "保険"},
	}
}

type Normalizer struct {
	replacements []Replacement
}

// New validates the table so that Clean stays idempotent: keys may not
// contain whitespace or sentence marks, and no rune of any replacement may
// occur in any key.
func New(replacements []Replacement) (*Normalizer, error) {
	keyRunes := map[rune]bool{}
	for _, r := range replacements {
		if r.From == "" || r.To == "" {
			return nil, fmt.Errorf("textnorm: empty replacement %q -> %q", r.From, r.To)
		}
		if strings.IndexFunc(r.From, unicode.IsSpace) >= 0 || strings.ContainsAny(r.From, terminalMarks) {
			return nil, fmt.Errorf("textnorm: key %q contains whitespace or punctuation", r.From)
		}
		for _, ch := range r.From {
			keyRunes[ch] = true
		}
	}
	for _, r := range replacements {
		for _, ch := range r.To {
			if keyRunes[ch] {
				return nil, fmt.Errorf("textnorm: replacement %q reuses key character %q", r.To, ch)
			}
		}
	}
	return &Normalizer{replacements: append([]Replacement(nil), replacements...)}, nil
}

// Default panics only if the built-in table is broken.
func Default() *Normalizer {
	n, err := New(DefaultReplacements())
	if err != nil {
		panic(err)
	}
	return n
}

// Clean is total and idempotent.
func (n *Normalizer) Clean(text string) string {
	t := text
	for _, r := range n.replacements {
		t = strings.ReplaceAll(t, r.From, r.To)
	}
	t = strings.ReplaceAll(t, fullWidthSpace, " ")
	t = strings.TrimSpace(t)
	t = multiSpace.ReplaceAllString(t, " ")
	if t != "" && !EndsWithMark(t) {
		t += defaultMark
	}
	return t
}

// EndsWithMark reports whether s ends in a recognized sentence-ending mark.
func EndsWithMark(s string) bool {
	for _, m := range terminalMarks {
		if strings.HasSuffix(s, string(m)) {
			return true
		}
	}
	return false
}
