package dataset

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"clinic-voice-go/internal/textnorm"
	"clinic-voice-go/internal/types"
)

const (
	IntentsSheet       = "intents"
	AbbreviationsSheet = "abbreviations"
)

// KeywordBook holds the clinic-maintained additions to the built-in
// keyword groups and replacement table.
type KeywordBook struct {
	Keywords     map[types.Intent][]string
	Replacements []textnorm.Replacement
	// Skipped counts rows that had an unknown intent or an empty cell.
	Skipped int
}

// LoadKeywordBook reads the intents and abbreviations sheets. Columns are
// located by header heuristics; either sheet may be absent but not both.
func LoadKeywordBook(path string) (KeywordBook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return KeywordBook{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	book := KeywordBook{Keywords: map[types.Intent][]string{}}
	intents, abbrevs := findSheet(f, IntentsSheet), findSheet(f, AbbreviationsSheet)
	if intents == "" && abbrevs == "" {
		return KeywordBook{}, fmt.Errorf("no %q or %q sheet in %s", IntentsSheet, AbbreviationsSheet, path)
	}

	if intents != "" {
		rows, err := f.GetRows(intents)
		if err != nil {
			return KeywordBook{}, fmt.Errorf("read rows %s: %w", intents, err)
		}
		intentIdx, keywordIdx := columns(rows, []string{"intent", "category", "group"}, []string{"keyword", "word", "phrase"})
		for _, r := range dataRows(rows) {
			in, ok := types.ParseIntent(cell(r, intentIdx))
			kw := cell(r, keywordIdx)
			if !ok || in == types.IntentOther || kw == "" {
				book.Skipped++
				continue
			}
			book.Keywords[in] = append(book.Keywords[in], kw)
		}
	}

	if abbrevs != "" {
		rows, err := f.GetRows(abbrevs)
		if err != nil {
			return KeywordBook{}, fmt.Errorf("read rows %s: %w", abbrevs, err)
		}
		fromIdx, toIdx := columns(rows, []string{"from", "spoken", "abbr"}, []string{"to", "canonical", "replace"})
		for _, r := range dataRows(rows) {
			from, to := cell(r, fromIdx), cell(r, toIdx)
			if from == "" || to == "" {
				book.Skipped++
				continue
			}
			book.Replacements = append(book.Replacements, textnorm.Replacement{From: from, To: to})
		}
	}
	return book, nil
}

func findSheet(f *excelize.File, name string) string {
	for _, s := range f.GetSheetList() {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return s
		}
	}
	return ""
}

// columns finds the two columns whose headers contain one of the given
// hints, falling back to positions 0 and 1.
func columns(rows [][]string, first, second []string) (int, int) {
	a, b := -1, -1
	if len(rows) > 0 {
		for i, h := range rows[0] {
			l := strings.ToLower(strings.TrimSpace(h))
			switch {
			case a == -1 && containsAny(l, first):
				a = i
			case b == -1 && containsAny(l, second):
				b = i
			}
		}
	}
	if a == -1 {
		a = 0
	}
	if b == -1 {
		b = 1
	}
	return a, b
}

func dataRows(rows [][]string) [][]string {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

func cell(r []string, idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[idx])
}

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}
