package book

import (
	"regexp"
	"strconv"
	"strings"
)

// ChapterTitle is result of parsing chapter heading line.
type ChapterTitle struct {
	Number int
	Title  string
}

var (
	chapterRe    = regexp.MustCompile(`(?i)^chapter\s+(\d+)\b\s*[:.\-–—]?\s*(.*)$`)
	decorations  = strings.NewReplacer("**", "", "__", "", "`", "")
	headingTrims = "#*_ \t"
)

// plainLine removes markdown emphasis and heading markers so that structure
// keywords could be recognized regardless of decoration.
func plainLine(line string) string {
	return strings.Trim(decorations.Replace(strings.TrimSpace(line)), headingTrims)
}

// ParseChapterTitle recognizes "Chapter N: Title" heading (with optional
// markdown decoration, any of ':', '.', '-' or dash as separator, or no
// title at all). Every renderer uses it, so chapter headings are interpreted
// identically everywhere.
func ParseChapterTitle(raw string) (ChapterTitle, bool) {
	line, _, _ := strings.Cut(strings.TrimSpace(raw), "\n")
	m := chapterRe.FindStringSubmatch(plainLine(line))
	if m == nil {
		return ChapterTitle{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return ChapterTitle{}, false
	}
	return ChapterTitle{
		Number: n,
		Title:  strings.Trim(strings.TrimSpace(m[2]), `"*_`),
	}, true
}
