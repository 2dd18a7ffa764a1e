// Package pdf lays out prepared book as a fixed layout PDF document or as a
// landscape slide deck.
package pdf

import (
	"context"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"bookpress/config"
	"bookpress/content"
	"bookpress/images"
)

// Generate writes PDF document. Every section of the content plan starts a
// new page, pages follow the plan order. Images are loaded through loader,
// nil loader reads local files and data URIs only.
func Generate(ctx context.Context, c *content.Content, w io.Writer, cfg *config.DocumentConfig, loader images.Loader, log *zap.Logger) error {
	doc, err := layout(ctx, c, cfg, loader, log)
	if err != nil {
		return err
	}
	if err := doc.Output(w); err != nil {
		return fmt.Errorf("unable to write PDF: %w", err)
	}
	return nil
}

func layout(ctx context.Context, c *content.Content, cfg *config.DocumentConfig, loader images.Loader, log *zap.Logger) (*gofpdf.Fpdf, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log = log.Named("pdf")

	w := newWriter(ctx, c, cfg, loader, false, log)
	log.Debug("Generating PDF", zap.String("title", c.Info.Title), zap.Int("sections", len(c.Sections)), zap.Stringer("page size", cfg.PDF.PageSize))

	for i := range c.Sections {
		if err := w.section(i); err != nil {
			return nil, err
		}
	}
	w.finish()

	if w.pdf.PageNo() != len(c.Sections) {
		log.Debug("Sections overflow their pages", zap.Int("sections", len(c.Sections)), zap.Int("pages", w.pdf.PageNo()))
	}
	if err := w.pdf.Error(); err != nil {
		return nil, fmt.Errorf("unable to generate PDF: %w", err)
	}
	return w.pdf, nil
}
