package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bookpress/config"
	"bookpress/content"
	"bookpress/convert"
	"bookpress/images"
	"bookpress/markup"
	"bookpress/misc"
	"bookpress/render/preview"
)

const sessionHeader = "X-Editor-Session"

type indexEntry struct {
	Slug     string
	Title    string
	Author   string
	Chapters int
	Pages    int
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Generator string
		Books     []indexEntry
		Downloads []string
	}{
		Generator: misc.GetAppName() + " " + misc.GetVersion(),
		Downloads: []string{
			config.OutputFmtPdf.String(),
			config.OutputFmtSlides.String(),
			config.OutputFmtMarkdown.String(),
		},
	}
	for _, c := range s.lib.Books() {
		data.Books = append(data.Books, indexEntry{
			Slug:     c.Slug,
			Title:    c.Info.Title,
			Author:   c.Info.Author,
			Chapters: len(c.Chapters()),
			Pages:    len(c.Sections),
		})
	}

	var buf bytes.Buffer
	if err := indexTmpl().Execute(&buf, data); err != nil {
		s.fail(w, r, http.StatusInternalServerError, fmt.Errorf("unable to render index: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// lookup writes 404 when requested book is unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*content.Content, bool) {
	c, ok := s.lib.Get(chi.URLParam(r, "slug"))
	if !ok {
		http.NotFound(w, r)
	}
	return c, ok
}

func (s *Server) book(w http.ResponseWriter, r *http.Request) {
	if c, ok := s.lookup(w, r); ok {
		s.render(w, r, c, config.OutputFmtHtml, false)
	}
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	format, err := config.ParseOutputFmt(chi.URLParam(r, "format"))
	if err != nil {
		s.fail(w, r, http.StatusNotFound, err)
		return
	}
	s.render(w, r, c, format, true)
}

// render generates complete document before sending anything, so failure
// results in proper error status.
func (s *Server) render(w http.ResponseWriter, r *http.Request, c *content.Content, format config.OutputFmt, attachment bool) {
	var buf bytes.Buffer

	start := time.Now()
	err := convert.Generate(r.Context(), c, format, &buf, s.log)
	s.metrics.rendered(format.String(), start, err)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, fmt.Errorf("unable to render %s as %s: %w", c.Slug, format, err))
		return
	}

	w.Header().Set("Content-Type", format.MimeType())
	if attachment {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s%s"`, c.Slug, format.Ext()))
	}
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// deck serves paginated preview, optional "page" query parameter (1 based)
// selects initially visible page.
func (s *Server) deck(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	pages, doc, err := preview.BuildPages(c, s.env.UserStyle, &s.env.Cfg.Document)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	opts := preview.DeckOptions{CloseURL: "/books/" + c.Slug}
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		opts.Start = p - 1
	}

	var buf bytes.Buffer
	start := time.Now()
	err = preview.WriteDeck(&buf, pages, doc, &s.env.Cfg.Document.Preview, opts)
	s.metrics.rendered(config.OutputFmtPreview.String(), start, err)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", config.OutputFmtPreview.MimeType())
	_, _ = w.Write(buf.Bytes())
}

// page serves single preview page with links to its neighbours, it works
// without scripting.
func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	pages, doc, err := preview.BuildPages(c, s.env.UserStyle, &s.env.Cfg.Document)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	link := func(i int) string {
		return "/books/" + c.Slug + "/pages/" + strconv.Itoa(i+1)
	}
	var buf bytes.Buffer
	if err := preview.RenderPage(&buf, pages, doc, n-1, link); err != nil {
		if errors.Is(err, preview.ErrPageRange) {
			http.NotFound(w, r)
			return
		}
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// markdown converts editor markdown into HTML preview fragment. Requests
// carrying the same session header supersede each other: the response of
// a request overtaken by a newer one is 409.
func (s *Server) markdown(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	run := func() (string, error) { return s.toHTML(r.Context(), string(body)) }

	var (
		out string
		err error
	)
	if session := r.Header.Get(sessionHeader); session != "" {
		out, err = markup.Latest(s.sessions, session, run)
	} else {
		out, err = run()
	}
	switch {
	case errors.Is(err, markup.ErrStale):
		s.fail(w, r, http.StatusConflict, err)
		return
	case err != nil:
		s.fail(w, r, http.StatusUnprocessableEntity, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, out)
}

func (s *Server) markdownToHTML(ctx context.Context, md string) (string, error) {
	sizer := images.NewSeededSizer(s.env.Cfg.Document.Images.Seed)
	return markup.ToHTML(ctx, md, markup.WithFigures(sizer))
}

// html converts rich text editor output into markdown.
func (s *Server) html(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	md, err := markup.ToMarkdown(string(body))
	if err != nil {
		s.fail(w, r, http.StatusUnprocessableEntity, err)
		return
	}
	w.Header().Set("Content-Type", config.OutputFmtMarkdown.MimeType())
	_, _ = io.WriteString(w, md)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, http.StatusRequestEntityTooLarge, err)
		} else {
			s.fail(w, r, http.StatusBadRequest, err)
		}
		return nil, false
	}
	return body, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	if r.Context().Err() != nil {
		// client is gone
		return
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	} else {
		s.log.Debug("Request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}
