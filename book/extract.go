package book

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// SectionKind identifies logical region of the book.
type SectionKind int

const (
	SectionNone SectionKind = iota
	SectionCover
	SectionCoverDesign
	SectionDedication
	SectionPreface
	SectionContents
	SectionIntroduction
	SectionChapter
	SectionGlossary
	SectionIndex
	SectionReferences
	SectionBackCover
)

var sectionNames = map[SectionKind]string{
	SectionNone:         "none",
	SectionCover:        "cover",
	SectionCoverDesign:  "cover design",
	SectionDedication:   "dedication",
	SectionPreface:      "preface",
	SectionContents:     "table of contents",
	SectionIntroduction: "introduction",
	SectionChapter:      "chapter",
	SectionGlossary:     "glossary",
	SectionIndex:        "index",
	SectionReferences:   "references",
	SectionBackCover:    "back cover",
}

func (k SectionKind) String() string {
	if n, ok := sectionNames[k]; ok {
		return n
	}
	return fmt.Sprintf("SectionKind(%d)", int(k))
}

// Diagnostic reports a possibly malformed section. Extraction never fails,
// diagnostics are the only signal of parse ambiguity.
type Diagnostic struct {
	Section SectionKind
	Chapter int
	Message string
}

func (d Diagnostic) String() string {
	if d.Section == SectionChapter {
		return fmt.Sprintf("chapter %d: %s", d.Chapter, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Section, d.Message)
}

type keyword struct {
	word string
	kind SectionKind
}

// Order matters: longer keywords sharing a prefix go first.
var keywords = []keyword{
	{"cover design notes", SectionCoverDesign},
	{"cover design", SectionCoverDesign},
	{"dedication", SectionDedication},
	{"preface", SectionPreface},
	{"table of contents", SectionContents},
	{"contents", SectionContents},
	{"introduction", SectionIntroduction},
	{"glossary", SectionGlossary},
	{"index", SectionIndex},
	{"references", SectionReferences},
	{"bibliography", SectionReferences},
	{"back cover", SectionBackCover},
}

var (
	// metadata markers must occupy a whole line, "[Title: x](url)" in prose is a link
	titleRe     = regexp.MustCompile(`(?im)^[ \t]*\[[ \t]*(?:your[ \t]+)?(?:book[ \t]+)?title[ \t]*:[ \t]*"?([^"\]\n]*?)"?[ \t]*\][ \t]*$`)
	authorRe    = regexp.MustCompile(`(?im)^[ \t]*\[[ \t]*author(?:[ \t]+name)?[ \t]*:[ \t]*"?([^"\]\n]*?)"?[ \t]*\][ \t]*$`)
	publisherRe = regexp.MustCompile(`(?im)^[ \t]*\[[ \t]*publisher[ \t]*:[ \t]*"?([^"\]\n]*?)"?[ \t]*\][ \t]*$`)

	blockSplitRe = regexp.MustCompile(`\n[ \t]*\n+`)

	prefaceMarkerRe    = regexp.MustCompile(`(?i)^(overview|coverage|use in curriculum|curriculum|prerequisites|goals|acknowledge?ments)\s*:\s*(.*)$`)
	inspirationsRe     = regexp.MustCompile(`(?i)^inspirations\s*:?\s*(.*)$`)
	backCoverMarkerRe  = regexp.MustCompile(`(?i)^(synopsis|about the author|author bio(?:graphy)?)\s*:?\s*(.*)$`)
	keywordSeparatorRe = regexp.MustCompile(`^[\s:.\-–—]+`)
)

// extractor is the sticky "currently open section" state machine.
type extractor struct {
	log  *zap.Logger
	fold cases.Caser
	info *Info

	state    SectionKind
	chapter  *Chapter
	chapters map[int]*Chapter
	order    []int

	prefaceField   *string
	backCoverField *string
	inspirations   bool
	lastGlossary   int

	opened map[SectionKind]bool
}

// Extract partitions content into book sections. Content is split into
// blank line separated blocks, every block is either recognized as a start
// of a new section by its leading keyword or attributed to the currently
// open section. Blocks outside any section are dropped. When data is not
// nil missing title and author are taken from it, and chapters are
// synthesized from it if none were found in content.
func Extract(content string, data *Data, log *zap.Logger) (*Info, []Diagnostic) {
	if log == nil {
		log = zap.NewNop()
	}
	x := &extractor{
		log:          log.Named("extract"),
		fold:         cases.Fold(),
		info:         &Info{},
		chapters:     make(map[int]*Chapter),
		opened:       make(map[SectionKind]bool),
		lastGlossary: -1,
	}

	content = strings.ReplaceAll(strings.ReplaceAll(content, "\r\n", "\n"), "\r", "\n")
	for _, block := range blockSplitRe.Split(content, -1) {
		if block = strings.TrimSpace(block); block != "" {
			x.block(block)
		}
	}

	// flush chapters exactly once, map guarantees single entry per number
	x.info.Chapters = make([]Chapter, 0, len(x.order))
	for _, n := range x.order {
		c := x.chapters[n]
		c.Content = strings.TrimSpace(c.Content)
		x.info.Chapters = append(x.info.Chapters, *c)
	}
	slices.SortFunc(x.info.Chapters, func(a, b Chapter) int { return cmp.Compare(a.Number, b.Number) })

	diags := x.diagnostics()
	if data != nil {
		backfill(x.info, data)
	}
	return x.info, diags
}

func (x *extractor) block(block string) {
	block = x.metadata(block)
	if block == "" {
		return
	}

	if x.state == SectionContents && looksLikeContents(block) {
		x.append(block)
		return
	}

	first, rest, _ := strings.Cut(block, "\n")
	head := plainLine(first)

	if ct, ok := ParseChapterTitle(head); ok {
		x.openChapter(ct, rest)
		return
	}
	for _, kw := range keywords {
		if tail, ok := x.matchKeyword(head, kw.word); ok {
			x.open(kw.kind, joinLines(tail, rest))
			return
		}
	}
	x.append(block)
}

// metadata pulls bracketed title, author and publisher lines out of the
// block and returns what is left.
func (x *extractor) metadata(block string) string {
	for _, f := range []struct {
		re  *regexp.Regexp
		dst *string
	}{
		{titleRe, &x.info.Title},
		{authorRe, &x.info.Author},
		{publisherRe, &x.info.Publisher},
	} {
		if m := f.re.FindStringSubmatch(block); m != nil {
			if *f.dst == "" {
				*f.dst = strings.TrimSpace(m[1])
			}
			block = f.re.ReplaceAllString(block, "")
		}
	}
	return strings.TrimSpace(block)
}

// matchKeyword checks whether line starts with keyword (case insensitive)
// followed by end of line or separator and returns remaining text.
func (x *extractor) matchKeyword(line, word string) (string, bool) {
	count, end := utf8.RuneCountInString(word), 0
	for count > 0 && end < len(line) {
		_, size := utf8.DecodeRuneInString(line[end:])
		end += size
		count--
	}
	if count > 0 {
		return "", false
	}
	if x.fold.String(line[:end]) != x.fold.String(word) {
		return "", false
	}
	tail := line[end:]
	if tail == "" {
		return "", true
	}
	sep := keywordSeparatorRe.FindString(tail)
	if sep == "" {
		// "Indexing" is not "Index"
		return "", false
	}
	return strings.TrimSpace(tail[len(sep):]), true
}

func (x *extractor) open(kind SectionKind, text string) {
	x.log.Debug("Section opened", zap.Stringer("section", kind))

	x.state = kind
	x.chapter = nil
	x.opened[kind] = true

	switch kind {
	case SectionPreface:
		x.prefaceField = &x.info.Preface.Coverage
	case SectionReferences:
		x.inspirations = false
	case SectionBackCover:
		x.backCoverField = &x.info.BackCover.Synopsis
	case SectionGlossary:
		x.lastGlossary = -1
	}
	if text != "" {
		x.append(text)
	}
}

func (x *extractor) openChapter(ct ChapterTitle, body string) {
	x.state = SectionChapter
	x.opened[SectionChapter] = true

	c, exists := x.chapters[ct.Number]
	if exists {
		// first occurrence wins, content keeps accumulating into it
		x.log.Debug("Duplicate chapter marker", zap.Int("chapter", ct.Number), zap.String("title", ct.Title))
	} else {
		c = &Chapter{Number: ct.Number, Title: ct.Title}
		x.chapters[ct.Number] = c
		x.order = append(x.order, ct.Number)
		x.log.Debug("Chapter opened", zap.Int("chapter", ct.Number), zap.String("title", ct.Title))
	}
	x.chapter = c
	if body = strings.TrimSpace(body); body != "" {
		x.append(body)
	}
}

func (x *extractor) append(text string) {
	switch x.state {
	case SectionNone:
		x.log.Debug("Dropping block outside of any section", zap.String("block", excerpt(text)))
	case SectionCoverDesign:
		appendText(&x.info.CoverDesign, text)
	case SectionDedication:
		appendText(&x.info.Dedication, text)
	case SectionIntroduction:
		appendText(&x.info.Introduction, text)
	case SectionChapter:
		appendText(&x.chapter.Content, text)
	case SectionPreface:
		x.appendMarked(text, prefaceMarkerRe, &x.prefaceField, x.prefaceTarget)
	case SectionBackCover:
		x.appendMarked(text, backCoverMarkerRe, &x.backCoverField, x.backCoverTarget)
	case SectionContents:
		for line := range strings.SplitSeq(text, "\n") {
			if e, ok := parseTOCLine(line); ok {
				x.info.TableOfContents = append(x.info.TableOfContents, e)
			}
		}
	case SectionGlossary:
		x.appendGlossary(text)
	case SectionIndex:
		for line := range strings.SplitSeq(text, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "#") {
				continue
			}
			if e, ok := parseIndexLine(line); ok {
				x.info.Index = append(x.info.Index, e)
			}
		}
	case SectionReferences:
		x.appendReferences(text)
	}
}

// appendMarked handles sections with labeled subsections: a line starting
// with marker switches destination, other lines go to the current one.
func (x *extractor) appendMarked(text string, marker *regexp.Regexp, cur **string, target func(string) *string) {
	var para []string
	flush := func() {
		if len(para) > 0 {
			appendText(*cur, strings.Join(para, "\n"))
			para = para[:0]
		}
	}
	for line := range strings.SplitSeq(text, "\n") {
		if m := marker.FindStringSubmatch(plainLine(line)); m != nil {
			flush()
			*cur = target(m[1])
			if v := strings.TrimSpace(m[2]); v != "" {
				para = append(para, v)
			}
			continue
		}
		para = append(para, line)
	}
	flush()
}

func (x *extractor) prefaceTarget(label string) *string {
	switch strings.ToLower(label) {
	case "use in curriculum", "curriculum":
		return &x.info.Preface.Curriculum
	case "prerequisites":
		return &x.info.Preface.Prerequisites
	case "goals":
		return &x.info.Preface.Goals
	case "acknowledgements", "acknowledgments":
		return &x.info.Preface.Acknowledgements
	default:
		return &x.info.Preface.Coverage
	}
}

func (x *extractor) backCoverTarget(label string) *string {
	if strings.EqualFold(label, "synopsis") {
		return &x.info.BackCover.Synopsis
	}
	return &x.info.BackCover.AuthorBio
}

func (x *extractor) appendGlossary(text string) {
	for line := range strings.SplitSeq(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if e, ok := parseGlossaryLine(trimmed); ok {
			x.info.Glossary = append(x.info.Glossary, e)
			x.lastGlossary = len(x.info.Glossary) - 1
			continue
		}
		if x.lastGlossary >= 0 {
			// continuation of previous definition
			g := &x.info.Glossary[x.lastGlossary]
			g.Definition += " " + trimmed
			continue
		}
		x.log.Debug("Unrecognized glossary line", zap.String("line", trimmed))
	}
}

func (x *extractor) appendReferences(text string) {
	for line := range strings.SplitSeq(text, "\n") {
		if m := inspirationsRe.FindStringSubmatch(plainLine(line)); m != nil {
			x.inspirations = true
			line = m[1]
		}
		ref, ok := parseReferenceLine(line)
		if !ok {
			continue
		}
		if x.inspirations {
			x.info.References.Inspirations = append(x.info.References.Inspirations, ref)
		} else {
			x.info.References.Main = append(x.info.References.Main, ref)
		}
	}
}

func (x *extractor) diagnostics() []Diagnostic {
	var diags []Diagnostic
	report := func(d Diagnostic) {
		x.log.Debug("Possibly malformed section", zap.Stringer("diagnostic", d))
		diags = append(diags, d)
	}

	empty := map[SectionKind]bool{
		SectionCoverDesign:  x.info.CoverDesign == "",
		SectionDedication:   x.info.Dedication == "",
		SectionPreface:      x.info.Preface.IsEmpty(),
		SectionContents:     len(x.info.TableOfContents) == 0,
		SectionIntroduction: x.info.Introduction == "",
		SectionGlossary:     len(x.info.Glossary) == 0,
		SectionIndex:        len(x.info.Index) == 0,
		SectionReferences:   x.info.References.IsEmpty(),
		SectionBackCover:    x.info.BackCover.IsEmpty(),
	}
	for kind := SectionCoverDesign; kind <= SectionBackCover; kind++ {
		if kind == SectionChapter || !x.opened[kind] || !empty[kind] {
			continue
		}
		report(Diagnostic{Section: kind, Message: "possibly malformed, section has no recognized content"})
	}
	for _, c := range x.info.Chapters {
		if c.Content == "" {
			report(Diagnostic{Section: SectionChapter, Chapter: c.Number, Message: "possibly malformed, chapter has no content"})
		}
	}
	return diags
}

// backfill completes info from structured book data.
func backfill(info *Info, data *Data) {
	if info.Title == "" {
		info.Title = strings.TrimSpace(data.BookTitle)
	}
	if info.Author == "" {
		info.Author = strings.TrimSpace(data.AuthorName)
	}
	if len(info.Chapters) > 0 {
		return
	}

	for i, bc := range data.BookChapter {
		number := bc.ChapterNo
		if number < 1 {
			number = i + 1
		}
		if _, exists := info.Chapter(number); exists {
			continue
		}
		c := Chapter{Number: number, Content: strings.TrimSpace(bc.ChapterInfo)}
		if ct, ok := ParseChapterTitle(bc.ChapterInfo); ok {
			c.Title = ct.Title
			_, body, _ := strings.Cut(strings.TrimSpace(bc.ChapterInfo), "\n")
			c.Content = strings.TrimSpace(body)
		}
		if c.Content == "" {
			c.Content = strings.TrimSpace(bc.ChapterSummary)
		}
		info.Chapters = append(info.Chapters, c)
	}
	if len(info.Chapters) > 0 {
		slices.SortFunc(info.Chapters, func(a, b Chapter) int { return cmp.Compare(a.Number, b.Number) })
		return
	}

	if full := strings.TrimSpace(data.AdditionalData.FullContent); full != "" {
		info.Chapters = []Chapter{{Number: 1, Title: info.Title, Content: full}}
	}
}

// looksLikeContents recognizes contents listing which continues after the
// header block. Without it "Chapter 1: Intro.....3" would open a chapter.
func looksLikeContents(block string) bool {
	first, _, _ := strings.Cut(block, "\n")
	if e, ok := parseTOCLine(first); ok && e.Page != "" {
		return true
	}
	lines, chapters := 0, 0
	for line := range strings.SplitSeq(block, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines++
		if _, ok := ParseChapterTitle(line); ok {
			chapters++
		}
	}
	return lines > 1 && chapters == lines
}

func appendText(dst *string, text string) {
	if text = strings.TrimSpace(text); text == "" {
		return
	}
	if *dst == "" {
		*dst = text
		return
	}
	*dst += "\n\n" + text
}

func joinLines(head, rest string) string {
	head, rest = strings.TrimSpace(head), strings.TrimSpace(rest)
	switch {
	case head == "":
		return rest
	case rest == "":
		return head
	}
	return head + "\n" + rest
}

func excerpt(s string) string {
	const limit = 60
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
