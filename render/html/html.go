// Package html renders prepared book into a single self contained HTML
// document.
package html

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	"sync"

	sprig "github.com/go-task/slim-sprig/v3"
	"go.uber.org/zap"

	"bookpress/book"
	"bookpress/config"
	"bookpress/content"
	"bookpress/images"
	"bookpress/misc"
	"bookpress/state"
)

var (
	//go:embed assets/book.html.tmpl
	bookTemplate string
	//go:embed assets/book.css
	bookCSS string
	//go:embed assets/lightbox.js
	lightboxJS string
)

var bookTmpl = sync.OnceValue(func() *template.Template {
	return template.Must(template.New("book").Funcs(sprig.HtmlFuncMap()).Parse(bookTemplate))
})

// Section is one rendered book section.
type Section struct {
	Kind   string
	Anchor string
	Title  string
	Page   int
	Body   template.HTML
	// Caption is short plain text summary of the section
	Caption string

	Doc *Document
}

// ContentsEntry is a table of contents line with resolved target.
type ContentsEntry struct {
	Title  string
	Page   string
	Anchor string
}

// Document holds everything book template needs.
type Document struct {
	ID          string
	Title       string
	Author      string
	Publisher   string
	CoverDesign string
	Description string
	Generator   string

	CoverImage     any
	BackCoverImage any
	Placeholder    string

	Style  template.CSS
	Script template.JS

	Contents []ContentsEntry
	Sections []*Section
}

// Styles returns built-in stylesheet with optional (already sanitized)
// user stylesheet appended.
func Styles(user []byte) template.CSS {
	if len(bytes.TrimSpace(user)) == 0 {
		return template.CSS(bookCSS)
	}
	return template.CSS(bookCSS + "\n/* user stylesheet */\n" + string(user))
}

// Anchor returns element id of the section.
func Anchor(s book.Section) string {
	if s.Kind == book.SectionChapter {
		return "chapter-" + strconv.Itoa(s.Chapter.Number)
	}
	return kindClass(s.Kind)
}

func kindClass(kind book.SectionKind) string {
	return strings.ReplaceAll(kind.String(), " ", "-")
}

// NewDocument builds template data for prepared content. Sections without
// data are not in the content plan, so they never reach the template.
func NewDocument(c *content.Content, userStyle []byte) *Document {
	info := c.Info
	d := &Document{
		ID:             c.ID.String(),
		Title:          info.Title,
		Author:         info.Author,
		Publisher:      info.Publisher,
		CoverDesign:    info.CoverDesign,
		Description:    c.Description,
		Generator:      misc.GetAppName() + " " + misc.GetVersion(),
		CoverImage:     imageURL(c.CoverImage),
		BackCoverImage: imageURL(c.BackCoverImage),
		Placeholder:    images.PlaceholderDataURI(),
		Style:          Styles(userStyle),
		Script:         template.JS(lightboxJS),
	}

	for i := range c.Sections {
		s := &c.Sections[i]
		d.Sections = append(d.Sections, &Section{
			Kind:    kindClass(s.Kind),
			Anchor:  Anchor(s.Section),
			Title:   s.Title,
			Page:    s.Page,
			Body:    template.HTML(s.HTML),
			Caption: s.Caption,
			Doc:     d,
		})
	}

	for _, e := range info.TableOfContents {
		entry := ContentsEntry{Title: e.Title, Page: e.Page}
		if page := c.ContentsPage(e); page > 0 {
			entry.Page = strconv.Itoa(page)
			entry.Anchor = d.Sections[page-1].Anchor
		}
		d.Contents = append(d.Contents, entry)
	}
	return d
}

// imageURL lets data: image URIs through template URL filtering, everything
// else goes through normal escaping.
func imageURL(src string) any {
	switch {
	case src == "":
		return nil
	case strings.HasPrefix(strings.ToLower(src), "data:image/"):
		return template.URL(src)
	}
	return src
}

// Execute writes complete document.
func (d *Document) Execute(w io.Writer) error {
	return bookTmpl().Execute(w, d)
}

// RenderSection returns inner markup of the section exactly as it appears
// in the complete document.
func RenderSection(s *Section) (template.HTML, error) {
	var buf bytes.Buffer
	if err := bookTmpl().ExecuteTemplate(&buf, "section", s); err != nil {
		return "", fmt.Errorf("unable to render section %q: %w", s.Title, err)
	}
	return template.HTML(buf.String()), nil
}

// Generate writes HTML preview of the book.
func Generate(ctx context.Context, c *content.Content, w io.Writer, cfg *config.DocumentConfig, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := state.EnvFromContext(ctx)

	d := NewDocument(c, env.UserStyle)
	if !cfg.Images.Placeholder {
		d.Placeholder = ""
	}
	log.Debug("Generating HTML", zap.String("title", d.Title), zap.Int("sections", len(d.Sections)), zap.Int("contents", len(d.Contents)))

	if err := d.Execute(w); err != nil {
		return fmt.Errorf("unable to render HTML document: %w", err)
	}
	return nil
}
