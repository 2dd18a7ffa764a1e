// Package book holds the structured representation of an AI generated book
// and the extractor which builds it from a semi-structured text blob.
package book

import (
	"fmt"
	"strings"

	"bookpress/utils/debug"
)

// Preface keeps optional preface subsections, empty when absent.
type Preface struct {
	Coverage         string `json:"coverage,omitempty"`
	Curriculum       string `json:"curriculum,omitempty"`
	Prerequisites    string `json:"prerequisites,omitempty"`
	Goals            string `json:"goals,omitempty"`
	Acknowledgements string `json:"acknowledgements,omitempty"`
}

// PrefaceField is a named non-empty preface subsection.
type PrefaceField struct {
	Label string
	Text  string
}

func (p Preface) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Fields returns non-empty preface subsections in presentation order.
func (p Preface) Fields() []PrefaceField {
	all := []PrefaceField{
		{"Overview", p.Coverage},
		{"Use in Curriculum", p.Curriculum},
		{"Prerequisites", p.Prerequisites},
		{"Goals", p.Goals},
		{"Acknowledgements", p.Acknowledgements},
	}
	res := make([]PrefaceField, 0, len(all))
	for _, f := range all {
		if strings.TrimSpace(f.Text) != "" {
			res = append(res, f)
		}
	}
	return res
}

// TOCEntry is a single table of contents line. Page is kept as text, AI
// output is not guaranteed to have numeric pages.
type TOCEntry struct {
	Title string `json:"title"`
	Page  string `json:"page,omitempty"`
}

type Chapter struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Heading returns chapter heading as displayed by all renderers.
func (c Chapter) Heading() string {
	if c.Title == "" {
		return fmt.Sprintf("Chapter %d", c.Number)
	}
	return fmt.Sprintf("Chapter %d: %s", c.Number, c.Title)
}

type GlossaryEntry struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type IndexEntry struct {
	Title string `json:"title"`
	Page  string `json:"page,omitempty"`
}

type References struct {
	Main         []string `json:"main,omitempty"`
	Inspirations []string `json:"inspirations,omitempty"`
}

func (r References) IsEmpty() bool {
	return len(r.Main) == 0 && len(r.Inspirations) == 0
}

type BackCover struct {
	Synopsis  string `json:"synopsis,omitempty"`
	AuthorBio string `json:"authorBio,omitempty"`
}

func (b BackCover) IsEmpty() bool {
	return b.Synopsis == "" && b.AuthorBio == ""
}

// Info is the parsed representation of one book. It is derived from content
// on every pass and never persisted. Any field may be empty.
type Info struct {
	Title           string          `json:"title"`
	Author          string          `json:"author"`
	Publisher       string          `json:"publisher"`
	CoverDesign     string          `json:"coverDesign,omitempty"`
	Dedication      string          `json:"dedication,omitempty"`
	Preface         Preface         `json:"preface"`
	TableOfContents []TOCEntry      `json:"tableOfContents,omitempty"`
	Introduction    string          `json:"introduction,omitempty"`
	Chapters        []Chapter       `json:"chapters,omitempty"`
	Glossary        []GlossaryEntry `json:"glossary,omitempty"`
	Index           []IndexEntry    `json:"index,omitempty"`
	References      References      `json:"references"`
	BackCover       BackCover       `json:"backCover"`
}

// Chapter returns chapter with requested number.
func (bi *Info) Chapter(number int) (*Chapter, bool) {
	for i := range bi.Chapters {
		if bi.Chapters[i].Number == number {
			return &bi.Chapters[i], true
		}
	}
	return nil, false
}

// String produces indented dump of the parsed book for debug reports.
func (bi *Info) String() string {
	tw := debug.NewTreeWriter()

	tw.Line(0, "Book")
	tw.TextBlock(1, "Title", bi.Title)
	tw.TextBlock(1, "Author", bi.Author)
	tw.Field(1, "Publisher", bi.Publisher)
	tw.Excerpt(1, "CoverDesign", bi.CoverDesign, 120)
	tw.Excerpt(1, "Dedication", bi.Dedication, 120)
	if fields := bi.Preface.Fields(); len(fields) > 0 {
		tw.Line(1, "Preface (%d)", len(fields))
		for _, f := range fields {
			tw.Excerpt(2, f.Label, f.Text, 80)
		}
	}
	if len(bi.TableOfContents) > 0 {
		tw.Line(1, "TableOfContents (%d)", len(bi.TableOfContents))
		for _, e := range bi.TableOfContents {
			tw.Line(2, "%q page=%q", e.Title, e.Page)
		}
	}
	tw.Excerpt(1, "Introduction", bi.Introduction, 120)
	tw.Line(1, "Chapters (%d)", len(bi.Chapters))
	for _, c := range bi.Chapters {
		tw.Line(2, "#%d %q", c.Number, c.Title)
		tw.Excerpt(3, "Content", c.Content, 80)
	}
	if len(bi.Glossary) > 0 {
		tw.Line(1, "Glossary (%d)", len(bi.Glossary))
		for _, g := range bi.Glossary {
			tw.Line(2, "%q: %q", g.Term, g.Definition)
		}
	}
	if len(bi.Index) > 0 {
		tw.Line(1, "Index (%d)", len(bi.Index))
		for _, e := range bi.Index {
			tw.Line(2, "%q page=%q", e.Title, e.Page)
		}
	}
	if !bi.References.IsEmpty() {
		tw.Line(1, "References main=%d inspirations=%d", len(bi.References.Main), len(bi.References.Inspirations))
	}
	tw.Excerpt(1, "Synopsis", bi.BackCover.Synopsis, 80)
	tw.Excerpt(1, "AuthorBio", bi.BackCover.AuthorBio, 80)
	return tw.String()
}

// Markdown writes book back using the same textual conventions Extract
// understands. Transformation is lossy: formatting inside glossary entries
// and original block layout are not preserved.
func (bi *Info) Markdown() string {
	var blocks []string
	add := func(s ...string) {
		for _, b := range s {
			if b = strings.TrimSpace(b); b != "" {
				blocks = append(blocks, b)
			}
		}
	}

	var head []string
	if bi.Title != "" {
		head = append(head, fmt.Sprintf("[Your Title: %q]", bi.Title))
	}
	if bi.Author != "" {
		head = append(head, fmt.Sprintf("[Author: %q]", bi.Author))
	}
	if bi.Publisher != "" {
		head = append(head, fmt.Sprintf("[Publisher: %s]", bi.Publisher))
	}
	add(strings.Join(head, "\n"))

	if bi.CoverDesign != "" {
		add("Cover Design: " + bi.CoverDesign)
	}
	if bi.Dedication != "" {
		add("Dedication", bi.Dedication)
	}
	if fields := bi.Preface.Fields(); len(fields) > 0 {
		add("Preface")
		for _, f := range fields {
			add(f.Label + ": " + f.Text)
		}
	}
	if len(bi.TableOfContents) > 0 {
		lines := make([]string, 0, len(bi.TableOfContents))
		for _, e := range bi.TableOfContents {
			if e.Page == "" {
				lines = append(lines, e.Title)
				continue
			}
			lines = append(lines, e.Title+"....."+e.Page)
		}
		add("Table of Contents\n" + strings.Join(lines, "\n"))
	}
	if bi.Introduction != "" {
		add("Introduction", bi.Introduction)
	}
	for _, c := range bi.Chapters {
		add(c.Heading(), c.Content)
	}
	if len(bi.Glossary) > 0 {
		lines := make([]string, 0, len(bi.Glossary))
		for _, g := range bi.Glossary {
			lines = append(lines, fmt.Sprintf("**%s**: %s", g.Term, g.Definition))
		}
		add("Glossary", strings.Join(lines, "\n"))
	}
	if len(bi.Index) > 0 {
		lines := make([]string, 0, len(bi.Index))
		for _, e := range bi.Index {
			if e.Page == "" {
				lines = append(lines, e.Title)
				continue
			}
			lines = append(lines, e.Title+", "+e.Page)
		}
		add("Index", strings.Join(lines, "\n"))
	}
	if !bi.References.IsEmpty() {
		add("References")
		if len(bi.References.Main) > 0 {
			add("- " + strings.Join(bi.References.Main, "\n- "))
		}
		if len(bi.References.Inspirations) > 0 {
			add("Inspirations:\n- " + strings.Join(bi.References.Inspirations, "\n- "))
		}
	}
	if !bi.BackCover.IsEmpty() {
		add("Back Cover")
		if bi.BackCover.Synopsis != "" {
			add("Synopsis: " + bi.BackCover.Synopsis)
		}
		if bi.BackCover.AuthorBio != "" {
			add("About the Author: " + bi.BackCover.AuthorBio)
		}
	}
	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n") + "\n"
}
