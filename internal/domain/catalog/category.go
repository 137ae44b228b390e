package catalog

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultCollationLocale is the locale categories are ordered by unless
// configured otherwise. Chinese pinyin order: 蘋果 (píng) sorts before 香蕉 (xiāng).
const DefaultCollationLocale = "zh"

// CategoryIndex identifies a category on the backend. The backend may send it
// as a JSON number or a string; it is kept as its textual form.
type CategoryIndex string

// UnmarshalJSON accepts both numeric and string indexes
func (i *CategoryIndex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*i = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = CategoryIndex(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*i = CategoryIndex(n.String())
	return nil
}

// String returns the index as sent to the backend
func (i CategoryIndex) String() string {
	return string(i)
}

// Category is a purchasable product series. Immutable once fetched.
type Category struct {
	Index CategoryIndex `json:"index"`
	Name  string        `json:"name"`
}

// SortCategories returns a copy of categories ordered by name under the
// collation of the given locale. Equal names keep their backend order.
// An unparsable locale falls back to DefaultCollationLocale.
func SortCategories(categories []Category, locale string) []Category {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse(DefaultCollationLocale)
	}
	col := collate.New(tag)

	sorted := make([]Category, len(categories))
	copy(sorted, categories)
	sort.SliceStable(sorted, func(a, b int) bool {
		return col.CompareString(sorted[a].Name, sorted[b].Name) < 0
	})
	return sorted
}

// FindCategory looks up a category by index
func FindCategory(categories []Category, index CategoryIndex) (Category, bool) {
	for _, c := range categories {
		if c.Index == index {
			return c, true
		}
	}
	return Category{}, false
}

// InitialData is what the backend returns when the order page starts
type InitialData struct {
	Categories []Category
	// CustomerName is a previously saved orderer name, empty when none
	CustomerName string
}
