// Package server exposes book renderers over HTTP: previews, downloads and
// editor conversion API.
package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	sprig "github.com/go-task/slim-sprig/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bookpress/convert"
	"bookpress/markup"
	"bookpress/state"
)

// editor request bodies
const maxBodySize = 8 << 20

//go:embed assets/index.html.tmpl
var indexTemplate string

var indexTmpl = sync.OnceValue(func() *template.Template {
	return template.Must(template.New("index").Funcs(sprig.HtmlFuncMap()).Parse(indexTemplate))
})

// Server serves prepared books.
type Server struct {
	env      *state.LocalEnv
	lib      *Library
	log      *zap.Logger
	metrics  *metrics
	sessions *markup.Tracker

	// markdown -> HTML conversion for editor previews
	toHTML func(ctx context.Context, md string) (string, error)
}

func New(env *state.LocalEnv, lib *Library) *Server {
	s := &Server{
		env:      env,
		lib:      lib,
		log:      env.Log.Named("server"),
		metrics:  newMetrics(),
		sessions: markup.NewTracker(),
	}
	s.toHTML = s.markdownToHTML
	return s
}

// Handler returns complete router with middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	if s.env.Cfg.Server.Metrics {
		r.Use(s.metrics.instrument)
	}
	r.Use(s.withEnv)

	r.Get("/", s.index)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.env.Cfg.Server.Metrics {
		r.Method(http.MethodGet, "/metrics", s.metrics.handler())
	}

	r.Route("/books/{slug}", func(r chi.Router) {
		r.Get("/", s.book)
		r.Get("/deck", s.deck)
		r.Get("/pages/{n}", s.page)
		r.Get("/download/{format}", s.download)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/markdown", s.markdown)
		r.Post("/html", s.html)
	})
	return r
}

// withEnv makes program environment available to renderers working with
// request context.
func (s *Server) withEnv(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(state.WithEnv(r.Context(), s.env)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.log.Debug("Request",
				zap.String("id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)))
		}()
		next.ServeHTTP(ww, r)
	})
}

// Run loads every book under source and serves them until ctx is
// cancelled.
func Run(ctx context.Context, env *state.LocalEnv, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := env.Log.Named("server")

	books, err := convert.Load(state.WithEnv(ctx, env), source, log)
	if err != nil {
		return fmt.Errorf("unable to load books: %w", err)
	}
	if len(books) == 0 {
		log.Warn("No books found", zap.String("source", source))
	}

	ln, err := net.Listen("tcp", env.Cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("unable to listen: %w", err)
	}
	return New(env, NewLibrary(books)).serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.log),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("Server starting", zap.Stringer("address", ln.Addr()), zap.Int("books", len(s.lib.Books())))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("unable to serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("Server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.env.Cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			if cerr := srv.Close(); cerr != nil {
				return fmt.Errorf("unable to stop server: shutdown error: %v, close error: %w", err, cerr)
			}
			return fmt.Errorf("unable to stop server gracefully: %w", err)
		}
		s.log.Info("Server stopped")
		return nil
	})
	return g.Wait()
}
