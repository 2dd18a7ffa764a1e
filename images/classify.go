package images

import (
	"fmt"
	"strings"
)

// Category is display size class of an image.
type Category int

const (
	CategoryStandard Category = iota
	CategoryPortrait
	CategoryLandscape
	CategoryDiagram
	CategoryFlowchart
	CategoryArchitecture
	CategorySequence
)

var categoryNames = []string{"standard", "portrait", "landscape", "diagram", "flowchart", "architecture", "sequence"}

func (c Category) String() string {
	if c >= 0 && int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// IsGeneric reports whether category is picked at random rather than
// derived from alt text.
func (c Category) IsGeneric() bool {
	return c == CategoryStandard || c == CategoryPortrait || c == CategoryLandscape
}

// Size is target display size in CSS pixels.
type Size struct {
	Category Category `json:"category"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
}

var sizes = map[Category]Size{
	CategoryFlowchart:    {CategoryFlowchart, 600, 800},
	CategoryArchitecture: {CategoryArchitecture, 800, 500},
	CategorySequence:     {CategorySequence, 700, 600},
	CategoryDiagram:      {CategoryDiagram, 700, 500},
	CategoryStandard:     {CategoryStandard, 600, 400},
	CategoryPortrait:     {CategoryPortrait, 400, 600},
	CategoryLandscape:    {CategoryLandscape, 800, 450},
}

// SizeOf returns size for category.
func SizeOf(c Category) Size {
	if s, ok := sizes[c]; ok {
		return s
	}
	return sizes[CategoryStandard]
}

// AspectRatio returns height to width ratio.
func (s Size) AspectRatio() float64 {
	if s.Width == 0 {
		return 0
	}
	return float64(s.Height) / float64(s.Width)
}

var (
	// checked in order, first hit wins
	specific = []struct {
		word string
		cat  Category
	}{
		{"flowchart", CategoryFlowchart},
		{"architecture", CategoryArchitecture},
		{"sequence", CategorySequence},
	}
	vocabulary = []string{
		"diagram", "flowchart", "chart", "graph", "architecture", "flow",
		"process", "sequence", "workflow", "system", "structure",
	}
)

// Classify derives category from alt text. Specific kinds are checked in
// fixed order flowchart, architecture, sequence and the first one found
// wins, so "sequence diagram of the architecture" is CategoryArchitecture.
// Any other vocabulary keyword yields CategoryDiagram. Alt text without
// known keywords yields CategoryStandard and ok == false, caller is
// expected to pick generic size.
func Classify(alt string) (Category, bool) {
	alt = strings.ToLower(alt)
	for _, s := range specific {
		if strings.Contains(alt, s.word) {
			return s.cat, true
		}
	}
	for _, w := range vocabulary {
		if strings.Contains(alt, w) {
			return CategoryDiagram, true
		}
	}
	return CategoryStandard, false
}
