// Package preview renders prepared book as a deck of pages: one section per
// page, thumbnails, keyboard navigation and sequential export.
package preview

import (
	"fmt"
	"html/template"

	"bookpress/book"
	"bookpress/config"
	"bookpress/content"
	rhtml "bookpress/render/html"
)

// Page is one deck page. Body is the same markup HTML document uses for the
// section.
type Page struct {
	Index   int
	Number  int
	Kind    book.SectionKind
	Class   string
	Anchor  string
	Title   string
	Caption string
	Body    template.HTML
}

// BuildPages derives deck pages from the content section plan.
func BuildPages(c *content.Content, userStyle []byte, cfg *config.DocumentConfig) ([]Page, *rhtml.Document, error) {
	doc := rhtml.NewDocument(c, userStyle)
	if cfg != nil && !cfg.Images.Placeholder {
		doc.Placeholder = ""
	}

	pages := make([]Page, 0, len(doc.Sections))
	for i, s := range doc.Sections {
		body, err := rhtml.RenderSection(s)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to build page %d: %w", i+1, err)
		}
		pages = append(pages, Page{
			Index:   i,
			Number:  s.Page,
			Kind:    c.Sections[i].Kind,
			Class:   s.Kind,
			Anchor:  s.Anchor,
			Title:   s.Title,
			Caption: s.Caption,
			Body:    body,
		})
	}
	return pages, doc, nil
}
