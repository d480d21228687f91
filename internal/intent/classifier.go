// Package intent routes cleaned caller text to one of the fixed intents by
// ordered keyword matching.
package intent

import (
	"strings"

	"clinic-voice-go/internal/types"
)

// Rule binds a keyword group to the intent it selects. Rules are evaluated
// in slice order and the first group with a hit wins.
type Rule struct {
	Intent   types.Intent
	Keywords []string
}

// DefaultRules returns the built-in groups in priority order:
// booking, insurance, cash pay.
func DefaultRules() []Rule {
	return []Rule{
		{Intent: types.IntentBooking, Keywords: []string{"予約", "アポイント", "空き", "とりたい", "キャンセル"}},
		{Intent: types.IntentInsurance, Keywords: []string{"保険", "インシュアランス", "カバー", "copay", "自己負担", "ppo", "hmo"}},
		{Intent: types.IntentCashPay, Keywords: []string{"自費", "料金", "値段", "費用", "価格"}},
	}
}

// MergeRules appends extra keywords to the matching groups of base without
// changing their order. Extra groups for intents not present in base are
// ignored, as is anything filed under Other.
func MergeRules(base []Rule, extra map[types.Intent][]string) []Rule {
	out := make([]Rule, 0, len(base))
	for _, r := range base {
		kws := append([]string(nil), r.Keywords...)
		for _, kw := range extra[r.Intent] {
			kw = strings.TrimSpace(kw)
			if kw == "" || contains(kws, kw) {
				continue
			}
			kws = append(kws, kw)
		}
		out = append(out, Rule{Intent: r.Intent, Keywords: kws})
	}
	return out
}

type Classifier struct {
	rules []Rule
}

func NewClassifier(rules []Rule) *Classifier {
	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Intent == types.IntentOther {
			continue
		}
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		normalized = append(normalized, Rule{Intent: r.Intent, Keywords: kws})
	}
	return &Classifier{rules: normalized}
}

func Default() *Classifier {
	return NewClassifier(DefaultRules())
}

// Classify never fails; text with no hit, including "", is IntentOther.
func (c *Classifier) Classify(text string) types.Intent {
	t := strings.ToLower(strings.ReplaceAll(text, "　", " "))
	if t == "" {
		return types.IntentOther
	}
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(t, kw) {
				return r.Intent
			}
		}
	}
	return types.IntentOther
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
