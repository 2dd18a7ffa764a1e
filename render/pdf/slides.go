package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"bookpress/config"
	"bookpress/content"
	"bookpress/images"
	"bookpress/render/preview"
	"bookpress/state"
)

// slideSink lays out each deck page on its own landscape page. Nothing is
// written until export ends successfully.
type slideSink struct {
	w     *writer
	out   io.Writer
	log   *zap.Logger
	total int
	done  int
}

func (s *slideSink) Begin(total int) error {
	if total != len(s.w.c.Sections) {
		return fmt.Errorf("deck has %d pages, content has %d sections", total, len(s.w.c.Sections))
	}
	s.total = total
	return nil
}

func (s *slideSink) Show(ctx context.Context, p preview.Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// section returns only after page is laid out completely
	return s.w.section(p.Index)
}

func (s *slideSink) Capture(_ context.Context, p preview.Page) error {
	if s.w.pdf.PageNo() != p.Number {
		return fmt.Errorf("slide %d landed on page %d", p.Number, s.w.pdf.PageNo())
	}
	s.done++
	return nil
}

func (s *slideSink) End() error {
	s.w.finish()
	s.log.Debug("Slides captured", zap.Int("slides", s.done))
	if err := s.w.pdf.Output(s.out); err != nil {
		return fmt.Errorf("unable to write slides: %w", err)
	}
	return nil
}

func (s *slideSink) Abort(err error) {
	s.log.Warn("Slides export aborted", zap.Int("captured", s.done), zap.Int("total", s.total), zap.Error(err))
	s.w.pdf.SetError(errors.New("export aborted"))
}

// GenerateSlides exports paginated preview as landscape PDF, one slide per
// deck page.
func GenerateSlides(ctx context.Context, c *content.Content, w io.Writer, cfg *config.DocumentConfig, loader images.Loader, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := state.EnvFromContext(ctx)
	log = log.Named("slides")

	pages, _, err := preview.BuildPages(c, env.UserStyle, cfg)
	if err != nil {
		return err
	}
	log.Debug("Generating slides", zap.String("title", c.Info.Title), zap.Int("pages", len(pages)))

	sink := &slideSink{
		w:   newWriter(ctx, c, cfg, loader, true, log),
		out: w,
		log: log,
	}
	if err := preview.Export(ctx, pages, sink); err != nil {
		return fmt.Errorf("unable to export slides: %w", err)
	}
	return nil
}
