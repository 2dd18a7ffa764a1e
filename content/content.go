package content

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"bookpress/book"
	"bookpress/content/text"
	"bookpress/images"
	"bookpress/markup"
	"bookpress/misc"
	"bookpress/state"
)

const (
	// thumbnail caption length
	captionLimit = 140
	// document description length
	descriptionLimit = 240
)

// namespace for reference ids derived from content
var bookNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:bookpress:book"))

var htmlStartRe = regexp.MustCompile(`(?i)^<(?:!doctype|html|head|body|div|p|h[1-6]|section|article|main|ul|ol|figure|blockquote|table|span|strong|em)[\s>/]`)

// Section is one page worth of the book: plan entry plus its body rendered
// once for every consumer.
type Section struct {
	book.Section

	Markdown string
	HTML     string
	Blocks   []markup.Block
	Caption  string
}

// Content is the prepared book shared by all renderers. Parsing, merging
// of structured data, page numbering and markdown rendering happen here
// exactly once.
type Content struct {
	SrcName string
	ID      uuid.UUID
	Slug    string

	Info        *book.Info
	Data        *book.Data
	Sections    []Section
	Diagnostics []book.Diagnostic

	CoverImage     string
	BackCoverImage string
	Description    string

	Sizer    *images.Sizer
	Splitter *text.Splitter
	WorkDir  string
}

// Options controls Prepare.
type Options struct {
	SrcName string
	// HTML forces input to be treated as HTML, otherwise it is detected
	// from the source name and content.
	HTML bool
	// Sizer is shared between preparations of the same book to keep image
	// sizes stable, new one is created from configured seed when nil.
	Sizer *images.Sizer
}

// Prepare parses raw book content and structured data into Content.
func Prepare(ctx context.Context, raw string, data *book.Data, opts Options, log *zap.Logger) (*Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env := state.EnvFromContext(ctx)
	log = log.Named("content")

	if data != nil && strings.TrimSpace(raw) == "" {
		raw = data.Blob()
	}
	if opts.HTML || IsHTML(opts.SrcName, raw) {
		md, err := markup.ToMarkdown(raw)
		if err != nil {
			return nil, fmt.Errorf("unable to convert HTML input: %w", err)
		}
		raw = md
	}

	info, diags := book.Extract(raw, data, log)
	if data != nil {
		merge(info, data, log)
	}
	if env.Cfg.Document.Extractor.ReportMalformed {
		for _, d := range diags {
			log.Warn("Possibly malformed section", zap.Stringer("section", d.Section), zap.Int("chapter", d.Chapter), zap.String("details", d.Message))
		}
	}

	sizer := opts.Sizer
	if sizer == nil {
		sizer = images.NewSeededSizer(env.Cfg.Document.Images.Seed)
	}

	c := &Content{
		SrcName:     opts.SrcName,
		ID:          referenceID(raw, data, log),
		Slug:        Slug(info.Title),
		Info:        info,
		Data:        data,
		Diagnostics: diags,
		Sizer:       sizer,
		Splitter:    text.NewSplitter(log),
	}
	if data != nil {
		c.CoverImage = strings.TrimSpace(data.AdditionalData.CoverImageURL)
		c.BackCoverImage = strings.TrimSpace(data.AdditionalData.BackCoverImageURL)
	}

	for _, s := range book.Plan(info) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sec, err := c.prepareSection(ctx, s)
		if err != nil {
			return nil, err
		}
		c.Sections = append(c.Sections, sec)
	}

	desc := info.BackCover.Synopsis
	if desc == "" {
		desc = info.Introduction
	}
	c.Description = c.Splitter.Summary(plain(desc), descriptionLimit)

	log.Debug("Content prepared",
		zap.String("title", info.Title),
		zap.Stringer("id", c.ID),
		zap.Int("chapters", len(info.Chapters)),
		zap.Int("pages", len(c.Sections)),
		zap.Int("diagnostics", len(diags)))

	if env.Rpt != nil {
		tmpDir, err := os.MkdirTemp("", misc.GetAppName()+"-")
		if err != nil {
			return nil, fmt.Errorf("unable to create temporary directory: %w", err)
		}
		env.Rpt.Store(fmt.Sprintf("%s-%s-%s", misc.GetAppName(), c.Slug, filepath.Base(tmpDir)), tmpDir)
		c.WorkDir = tmpDir

		name := filepath.Base(opts.SrcName)
		if name == "." || name == string(filepath.Separator) {
			name = c.Slug
		}
		if err := os.WriteFile(filepath.Join(tmpDir, name+"_source"), []byte(raw), 0644); err != nil {
			return nil, fmt.Errorf("unable to write source for debugging: %w", err)
		}
		if err := os.WriteFile(filepath.Join(tmpDir, name+"_prepared"), []byte(c.String()), 0644); err != nil {
			return nil, fmt.Errorf("unable to write prepared content for debugging: %w", err)
		}
	}
	return c, nil
}

func (c *Content) prepareSection(ctx context.Context, s book.Section) (Section, error) {
	sec := Section{Section: s, Markdown: sectionMarkdown(c.Info, s)}
	if sec.Markdown != "" {
		body, err := markup.ToHTML(ctx, sec.Markdown, markup.WithFigures(c.Sizer))
		if err != nil {
			return Section{}, fmt.Errorf("unable to render %s: %w", s.Title, err)
		}
		sec.HTML = body
		sec.Blocks = markup.Parse(sec.Markdown, c.Sizer)
	}

	switch s.Kind {
	case book.SectionCover:
		sec.Caption = c.Info.Title
		if c.Info.Author != "" {
			sec.Caption = strings.TrimSpace(sec.Caption + " by " + c.Info.Author)
		}
	case book.SectionBackCover:
		sec.Caption = c.Splitter.Summary(plain(c.Info.BackCover.Synopsis), captionLimit)
	default:
		sec.Caption = c.Splitter.Summary(markup.PlainText(sec.HTML), captionLimit)
	}
	return sec, nil
}

// Chapters returns prepared chapter sections in order.
func (c *Content) Chapters() []*Section {
	var res []*Section
	for i := range c.Sections {
		if c.Sections[i].Kind == book.SectionChapter {
			res = append(res, &c.Sections[i])
		}
	}
	return res
}

// Section returns first prepared section of requested kind.
func (c *Content) Section(kind book.SectionKind) (*Section, bool) {
	for i := range c.Sections {
		if c.Sections[i].Kind == kind {
			return &c.Sections[i], true
		}
	}
	return nil, false
}

// ChapterPage returns page chapter starts on, 0 when there is no such
// chapter.
func (c *Content) ChapterPage(number int) int {
	for _, s := range c.Sections {
		if s.Kind == book.SectionChapter && s.Chapter.Number == number {
			return s.Page
		}
	}
	return 0
}

// ContentsPage resolves table of contents entry to a page. Entries naming a
// chapter point to the chapter page, other entries are matched against
// section titles. Page numbers supplied by AI output are ignored, they
// rarely correspond to anything.
func (c *Content) ContentsPage(e book.TOCEntry) int {
	if ct, ok := book.ParseChapterTitle(e.Title); ok {
		return c.ChapterPage(ct.Number)
	}
	for _, s := range c.Sections {
		if strings.EqualFold(s.Title, e.Title) {
			return s.Page
		}
		if s.Kind == book.SectionChapter && s.Chapter.Title != "" && strings.EqualFold(s.Chapter.Title, e.Title) {
			return s.Page
		}
	}
	return 0
}

// IsHTML reports whether input should go through HTML to markdown
// conversion.
func IsHTML(name, raw string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm", ".xhtml":
		return true
	case ".md", ".markdown", ".txt":
		return false
	}
	return htmlStartRe.MatchString(strings.TrimSpace(raw))
}

// Slug returns file system and URL friendly name for the book.
func Slug(title string) string {
	if s := slug.Make(title); s != "" {
		return s
	}
	return "book"
}

func referenceID(raw string, data *book.Data, log *zap.Logger) uuid.UUID {
	if data != nil && data.ID != "" {
		if id, err := uuid.Parse(string(data.ID)); err == nil {
			return id
		}
		return uuid.NewSHA1(bookNamespace, []byte("id:"+string(data.ID)))
	}
	sum := sha256.Sum256([]byte(raw))
	id := uuid.NewSHA1(bookNamespace, sum[:])
	log.Debug("Book has no reference id, deriving from content", zap.Stringer("id", id))
	return id
}

// merge fills sections content did not have from structured data. Data
// text is run through the same extractor under its heading so formats are
// recognized identically.
func merge(info *book.Info, data *book.Data, log *zap.Logger) {
	ad := data.AdditionalData

	var blocks []string
	add := func(missing bool, heading, text string) {
		if text = strings.TrimSpace(text); missing && text != "" {
			blocks = append(blocks, heading+"\n\n"+text)
		}
	}
	add(info.Dedication == "", "Dedication", ad.Dedication)
	add(info.Preface.IsEmpty(), "Preface", ad.Preface)
	add(info.Introduction == "", "Introduction", ad.Introduction)
	add(len(info.Glossary) == 0, "Glossary", data.Glossary)
	add(len(info.Index) == 0, "Index", data.Index)
	add(info.References.IsEmpty(), "References", data.References)
	if len(info.TableOfContents) == 0 && strings.TrimSpace(ad.TableOfContents) != "" {
		// single block, contents lines look like chapter headings
		blocks = append(blocks, "Table of Contents\n"+compactLines(ad.TableOfContents))
	}
	if len(blocks) == 0 && len(info.TableOfContents) > 0 {
		return
	}

	extra, _ := book.Extract(strings.Join(blocks, "\n\n"), nil, log)
	if info.Dedication == "" {
		info.Dedication = extra.Dedication
	}
	if info.Preface.IsEmpty() {
		info.Preface = extra.Preface
	}
	if info.Introduction == "" {
		info.Introduction = extra.Introduction
	}
	if len(info.Glossary) == 0 {
		info.Glossary = extra.Glossary
	}
	if len(info.Index) == 0 {
		info.Index = extra.Index
	}
	if info.References.IsEmpty() {
		info.References = extra.References
	}
	if len(info.TableOfContents) == 0 {
		info.TableOfContents = extra.TableOfContents
	}
	if len(info.TableOfContents) == 0 && len(data.BookChapter) > 0 {
		log.Debug("Building table of contents from chapter data", zap.Int("chapters", len(data.BookChapter)))
		info.TableOfContents = data.ChapterTitles()
	}
}

func compactLines(s string) string {
	var lines []string
	for line := range strings.SplitSeq(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// sectionMarkdown returns body of the section in markdown. Cover and
// contents are laid out by renderers from structured data.
func sectionMarkdown(info *book.Info, s book.Section) string {
	var b strings.Builder
	para := func(format string, args ...any) {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, format, args...)
	}

	switch s.Kind {
	case book.SectionDedication:
		return info.Dedication
	case book.SectionIntroduction:
		return info.Introduction
	case book.SectionChapter:
		return s.Chapter.Content
	case book.SectionPreface:
		for _, f := range info.Preface.Fields() {
			para("### %s", f.Label)
			para("%s", f.Text)
		}
	case book.SectionGlossary:
		for _, g := range info.Glossary {
			para("**%s**: %s", g.Term, g.Definition)
		}
	case book.SectionIndex:
		for _, e := range info.Index {
			if e.Page == "" {
				para("%s", e.Title)
				continue
			}
			para("%s, %s", e.Title, e.Page)
		}
	case book.SectionReferences:
		list := func(items []string) {
			var lines []string
			for _, it := range items {
				lines = append(lines, "- "+it)
			}
			para("%s", strings.Join(lines, "\n"))
		}
		if len(info.References.Main) > 0 {
			list(info.References.Main)
		}
		if len(info.References.Inspirations) > 0 {
			para("### Inspirations")
			list(info.References.Inspirations)
		}
	case book.SectionBackCover:
		if info.BackCover.Synopsis != "" {
			para("%s", info.BackCover.Synopsis)
		}
		if info.BackCover.AuthorBio != "" {
			para("### About the Author")
			para("%s", info.BackCover.AuthorBio)
		}
	}
	return b.String()
}

// plain strips markdown of its markup for captions.
func plain(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	var parts []string
	for _, b := range markup.Parse(md, nil) {
		if t := strings.TrimSpace(b.PlainText()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
