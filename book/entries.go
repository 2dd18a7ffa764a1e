package book

import (
	"regexp"
	"strings"
)

var (
	listMarkerRe = regexp.MustCompile(`^(?:[-*+•]|\d+[.)])\s+`)

	// "Title.....12", "Title … 12", "Title - 12", "Title 12"
	tocLineRe = regexp.MustCompile(`^(.*?)\s*(?:\.{2,}|…+|\s[-–—]|\s)\s*(\d+)$`)
	// bare pagination artifacts AI output tends to leave in contents
	paginationRe = regexp.MustCompile(`(?i)^page(?:\s+\d+(?:\s+of\s+\d+)?)?$`)

	glossaryRe = regexp.MustCompile(`^(?:\d+[.)]\s+|[-*+•]\s+)?\**([^*:]+?)\**\s*(?::|\s[-–—])\s*(.+)$`)

	// "Term, 12", "Term ..... 12, 15", "Term 12-14"
	indexLineRe = regexp.MustCompile(`^(.+?)(?:\s*,\s*|\s*\.{2,}\s*|\s+)(\d+(?:\s*[,–-]\s*\d+)*)$`)
)

func stripListMarker(line string) string {
	return listMarkerRe.ReplaceAllString(strings.TrimSpace(line), "")
}

// parseTOCLine returns table of contents entry. Entry is rejected when title
// is empty or when the whole line is pagination marker like "Page 5".
func parseTOCLine(line string) (TOCEntry, bool) {
	line = strings.TrimSpace(decorations.Replace(stripListMarker(line)))
	if line == "" || paginationRe.MatchString(line) {
		return TOCEntry{}, false
	}

	e := TOCEntry{Title: line}
	if m := tocLineRe.FindStringSubmatch(line); m != nil {
		// "Chapter 12" is a title, not a page reference
		if ct, ok := ParseChapterTitle(line); !ok || ct.Title != "" {
			e.Title, e.Page = m[1], m[2]
		}
	}
	e.Title = strings.TrimRight(strings.TrimSpace(e.Title), ".… ")
	if e.Title == "" || paginationRe.MatchString(e.Title) {
		return TOCEntry{}, false
	}
	return e, true
}

func parseGlossaryLine(line string) (GlossaryEntry, bool) {
	m := glossaryRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return GlossaryEntry{}, false
	}
	term := strings.Trim(strings.TrimSpace(m[1]), "_")
	def := strings.TrimSpace(m[2])
	if term == "" || def == "" {
		return GlossaryEntry{}, false
	}
	return GlossaryEntry{Term: term, Definition: def}, true
}

func parseIndexLine(line string) (IndexEntry, bool) {
	line = strings.TrimSpace(decorations.Replace(stripListMarker(line)))
	if line == "" {
		return IndexEntry{}, false
	}
	if m := indexLineRe.FindStringSubmatch(line); m != nil {
		return IndexEntry{Title: strings.TrimRight(strings.TrimSpace(m[1]), ".,"), Page: strings.TrimSpace(m[2])}, true
	}
	return IndexEntry{Title: line}, true
}

func parseReferenceLine(line string) (string, bool) {
	line = strings.TrimSpace(stripListMarker(line))
	return line, line != ""
}
