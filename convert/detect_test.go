package convert

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

// TestIsArchiveFile tests archive file detection
func TestIsArchiveFile(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("non-zip extension", func(t *testing.T) {
		filePath := filepath.Join(tmpDir, "test.txt")
		if err := os.WriteFile(filePath, []byte("not a zip"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
		got, err := isArchiveFile(filePath)
		if err != nil {
			t.Errorf("isArchiveFile() error = %v", err)
		}
		if got {
			t.Error("isArchiveFile() = true, want false")
		}
	})

	t.Run("zip extension but invalid content", func(t *testing.T) {
		filePath := filepath.Join(tmpDir, "test.zip")
		if err := os.WriteFile(filePath, []byte("not a real zip file"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
		got, err := isArchiveFile(filePath)
		if err != nil {
			t.Errorf("isArchiveFile() error = %v", err)
		}
		if got {
			t.Error("isArchiveFile() = true, want false")
		}
	})

	t.Run("valid zip file", func(t *testing.T) {
		filePath := filepath.Join(tmpDir, "books.zip")
		writeZip(t, filePath, map[string]string{"book.md": "Chapter 1: One\n\nText."})

		got, err := isArchiveFile(filePath)
		if err != nil {
			t.Errorf("isArchiveFile() error = %v", err)
		}
		if !got {
			t.Error("isArchiveFile() = false, want true")
		}
	})
}

func TestIsArchiveFile_NonExistent(t *testing.T) {
	_, err := isArchiveFile("/nonexistent/file.zip")
	if err == nil {
		t.Error("Expected error for non-existent file, got nil")
	}
}

// TestDetectUTF tests UTF encoding detection
func TestDetectUTF(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want srcEncoding
	}{
		{"UTF-8 BOM", []byte{0xEF, 0xBB, 0xBF, 0x00}, encUTF8},
		{"UTF-16 Big Endian BOM", []byte{0xFE, 0xFF, 0x00, 0x00}, encUTF16BigEndian},
		{"UTF-16 Little Endian BOM", []byte{0xFF, 0xFE, 0x01, 0x00}, encUTF16LittleEndian},
		{"UTF-32 Big Endian BOM", []byte{0x00, 0x00, 0xFE, 0xFF}, encUTF32BigEndian},
		{"UTF-32 Little Endian BOM", []byte{0xFF, 0xFE, 0x00, 0x00}, encUTF32LittleEndian},
		{"No BOM", []byte("# Title"), encUnknown},
		{"Empty", nil, encUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectUTF(tt.buf); got != tt.want {
				t.Errorf("detectUTF() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestIsBookFile tests book source detection
func TestIsBookFile(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		file     string
		data     []byte
		wantBook bool
		wantEnc  srcEncoding
	}{
		{"markdown", "book.md", []byte("Chapter 1: One\n\nText."), true, encUnknown},
		{"markdown with BOM", "bom.md", append([]byte{0xEF, 0xBB, 0xBF}, "Chapter 1: One"...), true, encUTF8},
		{"html", "book.html", []byte("<p>Chapter 1: One</p>"), true, encUnknown},
		{"book record", "book.json", []byte(`{"bookTitle": "One"}`), true, encUnknown},
		{"unknown extension", "book.doc", []byte("Chapter 1: One"), false, encUnknown},
		{"binary under text extension", "image.md", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, false, encUnknown},
		{"empty", "empty.md", nil, false, encUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filePath := filepath.Join(tmpDir, tt.file)
			if err := os.WriteFile(filePath, tt.data, 0644); err != nil {
				t.Fatalf("Failed to create test file: %v", err)
			}
			gotBook, gotEnc, err := isBookFile(filePath)
			if err != nil {
				t.Fatalf("isBookFile() error = %v", err)
			}
			if gotBook != tt.wantBook {
				t.Errorf("isBookFile() book = %v, want %v", gotBook, tt.wantBook)
			}
			if gotEnc != tt.wantEnc {
				t.Errorf("isBookFile() encoding = %v, want %v", gotEnc, tt.wantEnc)
			}
		})
	}
}

func TestIsBookFile_NonExistent(t *testing.T) {
	if _, _, err := isBookFile("/nonexistent/file.md"); err == nil {
		t.Error("Expected error for non-existent file, got nil")
	}
}

func TestIsBookInArchive(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "books.zip")
	writeZip(t, zipPath, map[string]string{
		"a/book.md":   "Chapter 1: One",
		"a/notes.bin": "Chapter 1: One",
	})

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	for _, f := range r.File {
		got, _, err := isBookInArchive(f)
		if err != nil {
			t.Fatalf("isBookInArchive(%s) error = %v", f.Name, err)
		}
		if want := f.Name == "a/book.md"; got != want {
			t.Errorf("isBookInArchive(%s) = %v, want %v", f.Name, got, want)
		}
	}
}

// TestSelectReader tests that every encoding is decoded to plain UTF-8
func TestSelectReader(t *testing.T) {
	text := "Глава 1: Начало — ünïcödé"

	tests := []struct {
		enc     srcEncoding
		encoder transform.Transformer
	}{
		{encUnknown, transform.Nop},
		{encUTF8, unicode.UTF8BOM.NewEncoder()},
		{encUTF16BigEndian, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()},
		{encUTF16LittleEndian, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()},
		{encUTF32BigEndian, utf32.UTF32(utf32.BigEndian, utf32.UseBOM).NewEncoder()},
		{encUTF32LittleEndian, utf32.UTF32(utf32.LittleEndian, utf32.UseBOM).NewEncoder()},
	}

	for _, tt := range tests {
		t.Run(tt.enc.String(), func(t *testing.T) {
			encoded, _, err := transform.Bytes(tt.encoder, []byte(text))
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if got := detectUTF(encoded); got != tt.enc {
				t.Fatalf("detectUTF() = %v, want %v", got, tt.enc)
			}
			decoded, err := io.ReadAll(selectReader(bytes.NewReader(encoded), tt.enc))
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(decoded) != text {
				t.Errorf("decoded = %q, want %q", decoded, text)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := map[string]inputKind{
		"a.md":         inputText,
		"a.MARKDOWN":   inputText,
		"a.txt":        inputText,
		"a.htm":        inputHTML,
		"a.html":       inputHTML,
		"a.json":       inputData,
		"a.epub":       inputNone,
		"no-extension": inputNone,
	}
	for name, want := range tests {
		if got := kindOf(name); got != want {
			t.Errorf("kindOf(%q) = %v, want %v", name, got, want)
		}
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to create file in zip: %v", err)
		}
		if _, err := fw.Write([]byte(data)); err != nil {
			t.Fatalf("Failed to write file in zip: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}
