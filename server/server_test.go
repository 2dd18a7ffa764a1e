package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"bookpress/config"
	"bookpress/content"
	"bookpress/state"
)

const tides = `[Your Title: "Tides"]
[Author: "Ana Reyes"]

Table of Contents
Chapter 1: Moon
Chapter 2: Shore

Chapter 1: Moon

The moon pulls the sea.

Chapter 2: Shore

Waves arrive twice a day.`

const anchors = `[Your Title: "Anchors"]

Chapter 1: Iron

Heavy things hold.`

func setupTestEnv(t *testing.T) (context.Context, *state.LocalEnv) {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Server.Metrics = true
	cfg.Server.ShutdownTimeout = 5 * time.Second

	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = zaptest.NewLogger(t)
	env.Cfg = cfg
	return ctx, env
}

func prepareBooks(t *testing.T, ctx context.Context, env *state.LocalEnv, sources ...string) []*content.Content {
	t.Helper()
	var books []*content.Content
	for _, src := range sources {
		c, err := content.Prepare(ctx, src, nil, content.Options{SrcName: "book.md"}, env.Log)
		if err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}
		books = append(books, c)
	}
	return books
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	ctx, env := setupTestEnv(t)
	s := New(env, NewLibrary(prepareBooks(t, ctx, env, tides, anchors)))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(body)
}

func post(t *testing.T, url, session, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if session != "" {
		req.Header.Set(sessionHeader, session)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Errorf("POST %s: %v", url, err)
		return nil, ""
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, string(data)
}

func TestIndex(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	a, b := strings.Index(body, ">Anchors<"), strings.Index(body, ">Tides<")
	if a < 0 || b < 0 || a > b {
		t.Errorf("books are missing or not ordered:\n%s", body)
	}
	for _, want := range []string{
		`href="/books/tides/deck"`,
		`href="/books/tides/download/pdf"`,
		`href="/books/anchors/download/markdown"`,
		"2 chapters",
		"1 chapter,",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index does not contain %q", want)
		}
	}
}

func TestBook(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/books/tides")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(body, "<title>Tides</title>") {
		t.Error("book title missing")
	}

	if resp, _ := get(t, ts.URL+"/books/unknown"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown book status = %d", resp.StatusCode)
	}
}

func TestDeck(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/books/tides/deck?page=2")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, `data-start="1"`) {
		t.Error("requested start page ignored")
	}
	if !strings.Contains(body, `data-close="/books/tides"`) {
		t.Error("close url missing")
	}

	_, body = get(t, ts.URL+"/books/tides/deck?page=100")
	if !strings.Contains(body, `data-start="0"`) {
		t.Error("out of range start page not reset")
	}
}

func TestPage(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/books/tides/pages/1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, `rel="next" href="/books/tides/pages/2"`) {
		t.Error("next link missing")
	}
	if strings.Contains(body, `rel="prev"`) {
		t.Error("first page has previous link")
	}

	for _, p := range []string{"0", "100", "x"} {
		if resp, _ := get(t, ts.URL+"/books/tides/pages/"+p); resp.StatusCode != http.StatusNotFound {
			t.Errorf("page %s status = %d", p, resp.StatusCode)
		}
	}
}

func TestDownload(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		format      string
		contentType string
		filename    string
		prefix      string
	}{
		{"pdf", "application/pdf", "tides.pdf", "%PDF-"},
		{"slides", "application/pdf", "tides.slides.pdf", "%PDF-"},
		{"markdown", "text/markdown; charset=utf-8", "tides.md", "# Tides"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			resp, body := get(t, ts.URL+"/books/tides/download/"+tt.format)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d: %s", resp.StatusCode, body)
			}
			if ct := resp.Header.Get("Content-Type"); ct != tt.contentType {
				t.Errorf("content type = %q", ct)
			}
			want := `attachment; filename="` + tt.filename + `"`
			if cd := resp.Header.Get("Content-Disposition"); cd != want {
				t.Errorf("content disposition = %q, want %q", cd, want)
			}
			if !strings.HasPrefix(body, tt.prefix) {
				t.Errorf("body starts with %q", body[:min(len(body), 16)])
			}
		})
	}

	if resp, _ := get(t, ts.URL+"/books/tides/download/epub"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown format status = %d", resp.StatusCode)
	}
}

func TestMarkdownAPI(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := post(t, ts.URL+"/api/markdown", "", "Some **bold** text.")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "<strong>bold</strong>") {
		t.Errorf("body = %q", body)
	}
}

func TestMarkdownAPI_LatestWins(t *testing.T) {
	s, ts := newTestServer(t)

	var (
		calls   atomic.Int32
		started = make(chan struct{})
		release = make(chan struct{})
	)
	s.toHTML = func(_ context.Context, md string) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return "<p>" + md + "</p>", nil
	}

	var (
		wg        sync.WaitGroup
		oldStatus int
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if resp, _ := post(t, ts.URL+"/api/markdown", "editor-1", "old"); resp != nil {
			oldStatus = resp.StatusCode
		}
	}()

	<-started
	resp, body := post(t, ts.URL+"/api/markdown", "editor-1", "new")
	close(release)
	wg.Wait()

	if resp.StatusCode != http.StatusOK || body != "<p>new</p>" {
		t.Errorf("latest request: status = %d, body = %q", resp.StatusCode, body)
	}
	if oldStatus != http.StatusConflict {
		t.Errorf("superseded request status = %d, want %d", oldStatus, http.StatusConflict)
	}
	if n := s.sessions.Sessions(); n != 0 {
		t.Errorf("editor sessions kept after requests finished: %d", n)
	}
}

func TestHTMLAPI(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := post(t, ts.URL+"/api/html", "", "<p>Some <strong>bold</strong> text.</p><script>alert(1)</script>")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "**bold**") || strings.Contains(body, "alert") {
		t.Errorf("body = %q", body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t)

	if resp, body := get(t, ts.URL+"/healthz"); resp.StatusCode != http.StatusOK || strings.TrimSpace(body) != "ok" {
		t.Errorf("healthz: status = %d, body = %q", resp.StatusCode, body)
	}
	get(t, ts.URL+"/books/tides/download/markdown")

	resp, body := get(t, ts.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, want := range []string{
		`bookpress_http_requests_total{method="GET",route="/healthz",status="200"} 1`,
		`bookpress_render_total{format="markdown",status="ok"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics do not contain %q", want)
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Server.Metrics = false
	ts := httptest.NewServer(New(env, NewLibrary(prepareBooks(t, ctx, env, tides))).Handler())
	defer ts.Close()

	if resp, _ := get(t, ts.URL+"/metrics"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestNewLibrary_UniqueSlugs(t *testing.T) {
	ctx, env := setupTestEnv(t)
	lib := NewLibrary(prepareBooks(t, ctx, env, tides, anchors, tides))

	books := lib.Books()
	if len(books) != 3 {
		t.Fatalf("books = %d", len(books))
	}
	want := []string{"anchors", "tides", "tides-2"}
	for i, c := range books {
		if c.Slug != want[i] {
			t.Errorf("book %d slug = %q, want %q", i, c.Slug, want[i])
		}
		if got, ok := lib.Get(want[i]); !ok || got != c {
			t.Errorf("Get(%q) failed", want[i])
		}
	}
}

func TestServe_Shutdown(t *testing.T) {
	ctx, env := setupTestEnv(t)
	s := New(env, NewLibrary(nil))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, ln) }()

	resp, body := get(t, "http://"+ln.Addr().String()+"/")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "No books found.") {
		t.Errorf("status = %d, body = %q", resp.StatusCode, body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}

	if _, err := http.Get("http://" + ln.Addr().String() + "/healthz"); err == nil {
		t.Error("server still accepts connections")
	}
}

func TestRun_MissingSource(t *testing.T) {
	_, env := setupTestEnv(t)

	err := Run(context.Background(), env, "/nonexistent/books")
	if err == nil || !strings.Contains(err.Error(), "unable to load books") {
		t.Errorf("Run() error = %v", err)
	}
	if errors.Is(err, context.Canceled) {
		t.Error("unexpected cancellation")
	}
}
