package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/beevik/etree"
	"github.com/disintegration/imaging"
)

func encodeTestImage(t *testing.T, w, h int, c color.Color, format imaging.Format) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, imaging.New(w, h, c), format); err != nil {
		t.Fatalf("unable to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestPlaceholderSVG(t *testing.T) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(PlaceholderSVG(300, 200)); err != nil {
		t.Fatalf("placeholder is not valid xml: %v", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "svg" {
		t.Fatalf("unexpected root element: %v", root)
	}
	if root.SelectAttrValue("width", "") != "300" || root.SelectAttrValue("height", "") != "200" {
		t.Errorf("unexpected dimensions: %s x %s", root.SelectAttrValue("width", ""), root.SelectAttrValue("height", ""))
	}
	if root.FindElement("text") == nil {
		t.Error("placeholder has no label")
	}

	def := etree.NewDocument()
	if err := def.ReadFromBytes(PlaceholderSVG(0, -1)); err != nil {
		t.Fatalf("default placeholder is not valid xml: %v", err)
	}
	if def.Root().SelectAttrValue("width", "") != "600" {
		t.Errorf("default placeholder width = %s", def.Root().SelectAttrValue("width", ""))
	}
}

func TestPlaceholderDataURI(t *testing.T) {
	uri := PlaceholderDataURI()
	data, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("DecodeDataURI() error = %v", err)
	}
	if !bytes.Equal(data, PlaceholderSVG(0, 0)) {
		t.Error("data uri does not carry default placeholder")
	}
	if PlaceholderDataURI() != uri {
		t.Error("data uri must be stable")
	}
}

func TestPlaceholderPNG(t *testing.T) {
	data, err := PlaceholderPNG(300, 200)
	if err != nil {
		t.Fatalf("PlaceholderPNG() error = %v", err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("placeholder png does not decode: %v", err)
	}
	if format != "png" || img.Bounds().Dx() != 300 || img.Bounds().Dy() != 200 {
		t.Errorf("unexpected placeholder raster %s %v", format, img.Bounds())
	}
}

func TestRasterizeSVG_Fit(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 100"><rect width="200" height="100" fill="red"/></svg>`)
	tests := []struct {
		name   string
		w, h   int
		wantW  int
		wantH  int
	}{
		{"intrinsic", 0, 0, 200, 100},
		{"by width", 100, 0, 100, 50},
		{"by height", 0, 200, 400, 200},
		{"fit box", 100, 100, 100, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := RasterizeSVG(svg, tt.w, tt.h)
			if err != nil {
				t.Fatalf("RasterizeSVG() error = %v", err)
			}
			if img.Bounds().Dx() != tt.wantW || img.Bounds().Dy() != tt.wantH {
				t.Errorf("size = %v, want %dx%d", img.Bounds(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestRasterizeSVG_Clamp(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100000 50000"></svg>`)
	img, err := RasterizeSVG(svg, 0, 0)
	if err != nil {
		t.Fatalf("RasterizeSVG() error = %v", err)
	}
	if img.Bounds().Dx() != maxRasterDim || img.Bounds().Dy() != maxRasterDim/2 {
		t.Errorf("size = %v, want clamped to %d", img.Bounds(), maxRasterDim)
	}
}

func TestPrepare(t *testing.T) {
	t.Run("small png untouched", func(t *testing.T) {
		data := encodeTestImage(t, 40, 20, color.NRGBA{0, 128, 0, 255}, imaging.PNG)
		r, err := Prepare(data, 100, 80)
		if err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}
		if r.Type != "PNG" || !bytes.Equal(r.Data, data) || r.Width != 40 || r.Height != 20 {
			t.Errorf("unexpected raster %s %dx%d", r.Type, r.Width, r.Height)
		}
	})

	t.Run("large jpeg downscaled", func(t *testing.T) {
		data := encodeTestImage(t, 400, 200, color.NRGBA{10, 20, 30, 255}, imaging.JPEG)
		r, err := Prepare(data, 100, 80)
		if err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}
		if r.Type != "JPG" || r.Width != 100 || r.Height != 50 {
			t.Errorf("unexpected raster %s %dx%d", r.Type, r.Width, r.Height)
		}
	})

	t.Run("transparent stays png", func(t *testing.T) {
		data := encodeTestImage(t, 400, 200, color.NRGBA{10, 20, 30, 100}, imaging.PNG)
		r, err := Prepare(data, 200, 80)
		if err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}
		if r.Type != "PNG" || r.Width != 200 {
			t.Errorf("unexpected raster %s %dx%d", r.Type, r.Width, r.Height)
		}
	})

	t.Run("gif converted", func(t *testing.T) {
		buf := new(bytes.Buffer)
		pal := image.NewPaletted(image.Rect(0, 0, 10, 10), color.Palette{color.White, color.Black})
		if err := gif.Encode(buf, pal, nil); err != nil {
			t.Fatal(err)
		}
		r, err := Prepare(buf.Bytes(), 0, 80)
		if err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}
		if r.Type != "JPG" && r.Type != "PNG" {
			t.Errorf("gif not converted, type %s", r.Type)
		}
		if _, _, err := image.Decode(bytes.NewReader(r.Data)); err != nil {
			t.Errorf("converted data does not decode: %v", err)
		}
	})

	t.Run("svg rasterized", func(t *testing.T) {
		r, err := Prepare(PlaceholderSVG(300, 200), 150, 80)
		if err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}
		if r.Width != 150 || r.Height != 100 {
			t.Errorf("unexpected raster %s %dx%d", r.Type, r.Width, r.Height)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := Prepare([]byte("definitely not an image"), 0, 80); !errors.Is(err, ErrNotImage) {
			t.Errorf("Prepare() error = %v, want ErrNotImage", err)
		}
		if _, err := Prepare(nil, 0, 80); !errors.Is(err, ErrNotImage) {
			t.Errorf("Prepare(nil) error = %v, want ErrNotImage", err)
		}
	})
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	data := encodeTestImage(t, 4, 4, color.White, imaging.PNG)
	if err := os.WriteFile(filepath.Join(dir, "pic.png"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	l := FileLoader{Root: dir}
	ctx := context.Background()

	t.Run("relative", func(t *testing.T) {
		got, err := l.Load(ctx, "pic.png")
		if err != nil || !bytes.Equal(got, data) {
			t.Errorf("Load() = %d bytes, %v", len(got), err)
		}
	})
	t.Run("file url", func(t *testing.T) {
		got, err := l.Load(ctx, "file://"+filepath.ToSlash(filepath.Join(dir, "pic.png")))
		if err != nil || !bytes.Equal(got, data) {
			t.Errorf("Load() = %d bytes, %v", len(got), err)
		}
	})
	t.Run("data uri", func(t *testing.T) {
		got, err := l.Load(ctx, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(data))
		if err != nil || !bytes.Equal(got, data) {
			t.Errorf("Load() = %d bytes, %v", len(got), err)
		}
		got, err = l.Load(ctx, "data:text/plain,hello%20world")
		if err != nil || string(got) != "hello world" {
			t.Errorf("Load() = %q, %v", got, err)
		}
	})
	t.Run("remote", func(t *testing.T) {
		if _, err := l.Load(ctx, "https://example.com/a.png"); !errors.Is(err, ErrUnsupportedSource) {
			t.Errorf("Load() error = %v, want ErrUnsupportedSource", err)
		}
	})
	t.Run("missing", func(t *testing.T) {
		if _, err := l.Load(ctx, "nope.png"); err == nil {
			t.Error("expected error for missing file")
		}
	})
	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := l.Load(cctx, "pic.png"); !errors.Is(err, context.Canceled) {
			t.Errorf("Load() error = %v, want context.Canceled", err)
		}
	})
}
