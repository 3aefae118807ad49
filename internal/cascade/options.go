package cascade

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"intake/internal/catalog"
)

// Option is one selectable entry of a dependent dropdown.
type Option struct {
	Value catalog.ItemID `json:"value"`
	Label string         `json:"label"`
}

// OptionSets are the derived selectable sets at every cascade level.
// Projects keep catalog insertion order; every other set is sorted with the
// locale collator.
type OptionSets struct {
	Projects    []Option `json:"projects"`
	Buildings   []Option `json:"buildings"`
	Apartments  []Option `json:"apartments"`
	Storages    []Option `json:"storages"`
	Parkings    []Option `json:"parkings"`
	Commercials []Option `json:"commercials"`
}

// optionsFromItems derives options 1:1 from catalog items.
func optionsFromItems(items []catalog.Item) []Option {
	opts := make([]Option, 0, len(items))
	for _, it := range items {
		opts = append(opts, Option{Value: it.ID, Label: it.Name})
	}
	return opts
}

// optionsFromTexts derives options with the text column as label and the
// item name as fallback when the text is blank.
func optionsFromTexts(items []catalog.ItemText) []Option {
	opts := make([]Option, 0, len(items))
	for _, it := range items {
		label := it.Text
		if label == "" {
			label = it.Name
		}
		opts = append(opts, Option{Value: it.ID, Label: label})
	}
	return opts
}

// sorter orders option labels with locale collation rules and numeric
// awareness, so "Building 2" sorts before "Building 10". A collate.Collator
// is not safe for concurrent use; each cascade owns one and sorts under its
// own lock.
type sorter struct {
	collator *collate.Collator
}

func newSorter(tag language.Tag) *sorter {
	return &sorter{collator: collate.New(tag, collate.Numeric)}
}

func (s *sorter) sort(opts []Option) []Option {
	sort.SliceStable(opts, func(i, j int) bool {
		return s.collator.CompareString(opts[i].Label, opts[j].Label) < 0
	})
	return opts
}
