package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"bookpress/config"
)

func testLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

func testConfig() *config.FetchConfig {
	return &config.FetchConfig{
		Timeout:   5 * time.Second,
		Retries:   2,
		RetryWait: time.Millisecond,
		UserAgent: "bookpress-test",
		Token:     "s3cret",
	}
}

func TestClient_BookData(t *testing.T) {
	var flaky atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "bookpress-test" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			t.Errorf("unexpected authorization %q", r.Header.Get("Authorization"))
		}
		switch r.URL.Path {
		case "/book":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": 7, "bookTitle": "Remote", "bookChapter": [{"chapterNo": 1, "chapterInfo": "Chapter 1: A"}]}`))
		case "/flaky":
			if flaky.Add(1) < 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"bookTitle": "Second try"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(testConfig(), "", testLogger(t))
	ctx := context.Background()

	d, err := c.BookData(ctx, srv.URL+"/book")
	if err != nil {
		t.Fatalf("BookData() error = %v", err)
	}
	if d.ID != "7" || d.BookTitle != "Remote" || len(d.BookChapter) != 1 {
		t.Errorf("unexpected data %+v", d)
	}

	d, err = c.BookData(ctx, srv.URL+"/flaky")
	if err != nil {
		t.Fatalf("BookData() with retry error = %v", err)
	}
	if d.BookTitle != "Second try" || flaky.Load() != 2 {
		t.Errorf("retry did not happen: %+v, attempts %d", d, flaky.Load())
	}

	_, err = c.BookData(ctx, srv.URL+"/missing")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("BookData() error = %v, want 404 StatusError", err)
	}
}

func TestClient_BookDataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.json")
	if err := os.WriteFile(path, []byte(`{"bookTitle": "Local"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	c := New(testConfig(), "", testLogger(t))
	d, err := c.BookData(context.Background(), path)
	if err != nil || d.BookTitle != "Local" {
		t.Errorf("BookData() = %+v, %v", d, err)
	}
	if _, err := c.BookData(context.Background(), filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestClient_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/img.png" {
			_, _ = w.Write([]byte("png-bytes"))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "local.png"), []byte("local-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(testConfig(), dir, testLogger(t))
	ctx := context.Background()

	if data, err := c.Load(ctx, srv.URL+"/img.png"); err != nil || string(data) != "png-bytes" {
		t.Errorf("Load(remote) = %q, %v", data, err)
	}
	if data, err := c.Load(ctx, "local.png"); err != nil || string(data) != "local-bytes" {
		t.Errorf("Load(local) = %q, %v", data, err)
	}
	if _, err := c.Load(ctx, srv.URL+"/denied.png"); err == nil {
		t.Error("expected error for forbidden image")
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := c.Load(cctx, srv.URL+"/img.png"); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestIsRemote(t *testing.T) {
	for in, want := range map[string]bool{
		"https://x.test/a": true,
		"HTTP://x.test/a":  true,
		"file:///a":        false,
		"a/b.png":          false,
		"data:image/png,":  false,
	} {
		if got := IsRemote(in); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", in, got, want)
		}
	}
}
