package config

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func readArchive(t *testing.T, name string) map[string]string {
	t.Helper()

	zr, err := zip.OpenReader(name)
	if err != nil {
		t.Fatalf("unable to open report: %v", err)
	}
	defer zr.Close()

	res := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("unable to open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("unable to read %s: %v", f.Name, err)
		}
		res[f.Name] = string(data)
	}
	return res
}

func TestReportClose_ArchivesEntries(t *testing.T) {
	tmpDir := t.TempDir()

	conf := ReporterConfig{Destination: filepath.Join(tmpDir, "report.zip")}
	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}

	stored := filepath.Join(tmpDir, "source.md")
	if err := os.WriteFile(stored, []byte("# Title"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	dir := filepath.Join(tmpDir, "assets")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cover.svg"), []byte("<svg/>"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	r.Store("source.md", stored)
	r.Store("assets", dir)
	r.StoreData("book.txt", []byte("info"))
	if err := r.StoreCopy("copy.md", stored); err != nil {
		t.Fatalf("StoreCopy() error: %v", err)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Report.Close() error: %v", err)
	}

	files := readArchive(t, conf.Destination)
	for _, name := range []string{"MANIFEST", "source.md", "assets/cover.svg", "book.txt", "copy.md/source.md"} {
		if _, ok := files[name]; !ok {
			t.Errorf("report is missing %q, has %v", name, keys(files))
		}
	}
	if files["book.txt"] != "info" {
		t.Errorf("book.txt = %q, want %q", files["book.txt"], "info")
	}
	if !strings.Contains(files["MANIFEST"], "source.md") {
		t.Errorf("MANIFEST does not list stored entries:\n%s", files["MANIFEST"])
	}
}

func keys(m map[string]string) []string {
	res := make([]string, 0, len(m))
	for k := range m {
		res = append(res, k)
	}
	return res
}

func TestReport_ConcurrentStoreData(t *testing.T) {
	tmpDir := t.TempDir()

	conf := ReporterConfig{Destination: filepath.Join(tmpDir, "report.zip")}
	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.StoreData(fmt.Sprintf("request-%02d.md", i), []byte("x"))
		}()
	}
	wg.Wait()

	if err := r.Close(); err != nil {
		t.Fatalf("Report.Close() error: %v", err)
	}
	if got := len(readArchive(t, conf.Destination)); got != 17 {
		t.Errorf("archive has %d entries, want 17", got)
	}
}

func TestReport_StoreDataTwicePanics(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	r.StoreData("a", []byte("1"))

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate StoreData")
		}
	}()
	r.StoreData("a", []byte("2"))
}

func TestReportClose_NilReport(t *testing.T) {
	var r *Report
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
	if r.Name() != "" {
		t.Errorf("Name on nil report should be empty")
	}
	// must be no-op
	r.Store("x", "y")
	r.StoreData("x", nil)
}

func TestReportClose_NilFile(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}
