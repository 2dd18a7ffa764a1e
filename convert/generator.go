package convert

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"bookpress/book"
	"bookpress/config"
	"bookpress/content"
	"bookpress/render/html"
	"bookpress/render/pdf"
	"bookpress/render/preview"
	"bookpress/state"
)

// Generate writes book in requested format.
func Generate(ctx context.Context, c *content.Content, format config.OutputFmt, w io.Writer, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)
	cfg := &env.Cfg.Document

	switch format {
	case config.OutputFmtHtml:
		return html.Generate(ctx, c, w, cfg, log)
	case config.OutputFmtPreview:
		return preview.Generate(ctx, c, w, cfg, log)
	case config.OutputFmtPdf:
		return pdf.Generate(ctx, c, w, cfg, env.Loader, log)
	case config.OutputFmtSlides:
		return pdf.GenerateSlides(ctx, c, w, cfg, env.Loader, log)
	case config.OutputFmtMarkdown:
		return WriteMarkdown(c, w)
	}
	return fmt.Errorf("unsupported output format %s", format)
}

// writeOutput generates book into file, partial file is removed on failure.
func writeOutput(ctx context.Context, c *content.Content, format config.OutputFmt, outputName string, log *zap.Logger) (err error) {
	f, err := os.Create(outputName)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("unable to close output file: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(outputName)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := Generate(ctx, c, format, bw, log); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteMarkdown writes normalized markdown of the whole book, one top level
// heading per section in plan order.
func WriteMarkdown(c *content.Content, w io.Writer) error {
	var b strings.Builder
	para := func(s string) {
		if s = strings.TrimSpace(s); s == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(s)
	}

	info := c.Info
	for _, s := range c.Sections {
		switch s.Kind {
		case book.SectionCover:
			para("# " + s.Title)
			if info.Author != "" {
				para("*by " + info.Author + "*")
			}
			if info.Publisher != "" {
				para(info.Publisher)
			}
			if info.CoverDesign != "" {
				para("Cover Design: " + info.CoverDesign)
			}
		case book.SectionContents:
			para("## " + s.Title)
			var lines []string
			for _, e := range info.TableOfContents {
				line := "- " + e.Title
				if page := c.ContentsPage(e); page > 0 {
					line += fmt.Sprintf(" (%d)", page)
				}
				lines = append(lines, line)
			}
			para(strings.Join(lines, "\n"))
		default:
			para("## " + s.Title)
			para(s.Markdown)
		}
	}
	b.WriteString("\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("unable to write markdown: %w", err)
	}
	return nil
}
