package preview

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"sync"

	sprig "github.com/go-task/slim-sprig/v3"
	"go.uber.org/zap"

	"bookpress/config"
	"bookpress/content"
	rhtml "bookpress/render/html"
	"bookpress/state"
)

var (
	//go:embed assets/deck.html.tmpl
	deckTemplate string
	//go:embed assets/page.html.tmpl
	pageTemplate string
	//go:embed assets/deck.css
	deckCSS string
	//go:embed assets/deck.js
	deckJS string
)

// ErrPageRange is returned when requested page is not in the deck.
var ErrPageRange = errors.New("page out of range")

var (
	deckTmpl = sync.OnceValue(func() *template.Template {
		return template.Must(template.New("deck").Funcs(sprig.HtmlFuncMap()).Parse(deckTemplate))
	})
	pageTmpl = sync.OnceValue(func() *template.Template {
		return template.Must(template.New("page").Funcs(sprig.HtmlFuncMap()).Parse(pageTemplate))
	})
)

// DeckOptions control interactive deck.
type DeckOptions struct {
	// Start is zero based index of the initially shown page
	Start int
	// CloseURL is where Escape leads, empty keeps viewer open
	CloseURL string
}

type deckData struct {
	Doc            *rhtml.Document
	Pages          []Page
	Start          int
	CloseURL       string
	Thumbnails     bool
	ThumbnailScale float64
	Style          template.CSS
	Script         template.JS
}

// WriteDeck writes interactive deck for already built pages.
func WriteDeck(w io.Writer, pages []Page, doc *rhtml.Document, cfg *config.PreviewConfig, opts DeckOptions) error {
	if len(pages) == 0 {
		return errors.New("deck has no pages")
	}
	if opts.Start < 0 || opts.Start >= len(pages) {
		opts.Start = 0
	}
	data := deckData{
		Doc:            doc,
		Pages:          pages,
		Start:          opts.Start,
		CloseURL:       opts.CloseURL,
		Thumbnails:     cfg.Thumbnails,
		ThumbnailScale: cfg.ThumbnailScale,
		Style:          template.CSS(deckCSS),
		Script:         template.JS(deckJS),
	}
	if err := deckTmpl().Execute(w, data); err != nil {
		return fmt.Errorf("unable to render deck: %w", err)
	}
	return nil
}

// RenderPage writes single page of the deck with plain previous/next links,
// link maps page index to its URL.
func RenderPage(w io.Writer, pages []Page, doc *rhtml.Document, index int, link func(int) string) error {
	if index < 0 || index >= len(pages) {
		return fmt.Errorf("page %d of %d: %w", index+1, len(pages), ErrPageRange)
	}
	nav := NewNavigator(len(pages))
	nav.Go(index)

	data := struct {
		Doc        *rhtml.Document
		Page       Page
		Count      int
		Prev, Next string
		Style      template.CSS
	}{
		Doc:   doc,
		Page:  pages[index],
		Count: len(pages),
		Style: template.CSS(deckCSS),
	}
	if !nav.IsFirst() {
		data.Prev = link(index - 1)
	}
	if !nav.IsLast() {
		data.Next = link(index + 1)
	}
	if err := pageTmpl().Execute(w, data); err != nil {
		return fmt.Errorf("unable to render page %d: %w", index+1, err)
	}
	return nil
}

// Generate writes paginated preview of the book as a standalone deck.
func Generate(ctx context.Context, c *content.Content, w io.Writer, cfg *config.DocumentConfig, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := state.EnvFromContext(ctx)

	pages, doc, err := BuildPages(c, env.UserStyle, cfg)
	if err != nil {
		return err
	}
	log.Debug("Generating preview deck", zap.String("title", doc.Title), zap.Int("pages", len(pages)), zap.Bool("thumbnails", cfg.Preview.Thumbnails))

	return WriteDeck(w, pages, doc, &cfg.Preview, DeckOptions{})
}
