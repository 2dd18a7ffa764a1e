package html

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"bookpress/book"
	"bookpress/config"
	"bookpress/content"
	"bookpress/state"
)

const sample = `[Your Title: "Rivers & <Deltas>"]
[Author: "Jo Banks"]

Cover Design: a wide delta at dusk

Dedication

For my teachers.

Preface

Overview: How rivers shape land.

Goals: Read maps.

Table of Contents
Chapter 1: Sources.....3
Chapter 2: Mouths.....8

Chapter 1: Sources

Rain gathers in hills.

![River system architecture](https://example.com/river.png)

Chapter 2: Mouths

Deltas form where rivers slow.

Glossary

**Delta**: landform at a river mouth

Back Cover

Synopsis: Water always finds a way.

About the Author: Jo studies rivers.`

func prepare(t *testing.T, raw string, style []byte) (context.Context, *content.Content, *zap.Logger) {
	t.Helper()
	log := zaptest.NewLogger(t)
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = log
	env.Cfg = cfg
	env.UserStyle = style

	c, err := content.Prepare(ctx, raw, nil, content.Options{}, log)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	return ctx, c, log
}

func render(t *testing.T, raw string, style []byte) string {
	t.Helper()
	ctx, c, log := prepare(t, raw, style)
	env := state.EnvFromContext(ctx)

	var buf bytes.Buffer
	if err := Generate(ctx, c, &buf, &env.Cfg.Document, log); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return buf.String()
}

func TestGenerate_Document(t *testing.T) {
	out := render(t, sample, []byte(".book-section { color: navy; }"))

	for _, want := range []string{
		"<!DOCTYPE html>",
		"<title>Rivers &amp; &lt;Deltas&gt;</title>",
		`<section class="book-section cover" id="cover">`,
		`<p class="author">Jo Banks</p>`,
		`<p class="cover-design">a wide delta at dusk</p>`,
		`<section class="book-section dedication" id="dedication">`,
		"<h3>Overview</h3>",
		"<h3>Goals</h3>",
		`<a href="#chapter-1">Chapter 1: Sources</a>`,
		`<a href="#chapter-2">Chapter 2: Mouths</a>`,
		`<section class="book-section chapter" id="chapter-1">`,
		`<figure class="book-image image-architecture"`,
		"<h3>Delta</h3>",
		`<section class="book-section back-cover" id="back-cover">`,
		"<h3>About the Author</h3>",
		`id="lightbox"`,
		"addEventListener",
		".book-section { color: navy; }",
		`<meta name="description" content="Water always finds a way.">`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q", want)
		}
	}
	if strings.Contains(out, "<Deltas>") {
		t.Error("title is not escaped")
	}
}

func TestGenerate_OmitsEmptySections(t *testing.T) {
	out := render(t, "[Your Title: \"Bare\"]\n\nChapter 1: Only\n\nText.", nil)

	for _, banned := range []string{
		`id="dedication"`,
		"<h2>Dedication</h2>",
		`id="preface"`,
		`id="table-of-contents"`,
		`id="introduction"`,
		`id="glossary"`,
		`id="index"`,
		`id="references"`,
		"/* user stylesheet */",
		`class="cover-image"`,
	} {
		if strings.Contains(out, banned) {
			t.Errorf("output contains %q", banned)
		}
	}
	if got := strings.Count(out, `<section class="book-section`); got != 3 {
		t.Errorf("expected cover, chapter and back cover, got %d sections", got)
	}
}

func TestGenerate_ContentsPages(t *testing.T) {
	_, c, _ := prepare(t, sample, nil)
	d := NewDocument(c, nil)

	if len(d.Contents) != 2 {
		t.Fatalf("contents = %+v", d.Contents)
	}
	for i, e := range d.Contents {
		page := c.ChapterPage(i + 1)
		if e.Page != strconv.Itoa(page) {
			t.Errorf("entry %q page = %q, want %d", e.Title, e.Page, page)
		}
		if e.Anchor != "chapter-"+strconv.Itoa(i+1) {
			t.Errorf("entry %q anchor = %q", e.Title, e.Anchor)
		}
	}
}

func TestRenderSection_MatchesDocument(t *testing.T) {
	_, c, _ := prepare(t, sample, nil)
	d := NewDocument(c, nil)

	var buf bytes.Buffer
	if err := d.Execute(&buf); err != nil {
		t.Fatal(err)
	}
	full := buf.String()

	for _, s := range d.Sections {
		body, err := RenderSection(s)
		if err != nil {
			t.Fatalf("RenderSection(%s) error = %v", s.Kind, err)
		}
		if !strings.Contains(full, string(body)) {
			t.Errorf("section %s markup differs from document", s.Kind)
		}
	}
}

func TestAnchor(t *testing.T) {
	ch := book.Chapter{Number: 12}
	if got := Anchor(book.Section{Kind: book.SectionChapter, Chapter: &ch}); got != "chapter-12" {
		t.Errorf("chapter anchor = %q", got)
	}
	if got := Anchor(book.Section{Kind: book.SectionContents}); got != "table-of-contents" {
		t.Errorf("contents anchor = %q", got)
	}
}

func TestImageURL(t *testing.T) {
	if imageURL("") != nil {
		t.Error("empty url should be nil")
	}
	if _, ok := imageURL("data:image/png;base64,AA").(string); ok {
		t.Error("data URI should bypass URL filtering")
	}
	if s, ok := imageURL("https://example.com/a.png").(string); !ok || s != "https://example.com/a.png" {
		t.Error("remote url should stay plain string")
	}
}
