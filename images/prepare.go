package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Raster is image data ready to be embedded into fixed layout document.
type Raster struct {
	Data   []byte
	Type   string // "JPG" or "PNG"
	Width  int
	Height int
}

var ErrNotImage = errors.New("data is not a recognized image")

// Prepare converts image data into JPEG or PNG no wider than maxWidth
// (0 means unlimited). SVG is rasterized, formats other than JPEG and PNG are
// re-encoded. Untouched JPEG and PNG data is returned as is.
func Prepare(data []byte, maxWidth, jpegQuality int) (*Raster, error) {
	if len(data) == 0 {
		return nil, ErrNotImage
	}

	if isSVG(data) {
		img, err := RasterizeSVG(data, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("unable to rasterize svg: %w", err)
		}
		return encode(downscale(img, maxWidth), jpegQuality)
	}

	kind, err := filetype.Match(data)
	if err != nil || !filetype.IsImage(data) {
		return nil, ErrNotImage
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s image: %w", kind.Extension, err)
	}

	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		return encode(downscale(img, maxWidth), jpegQuality)
	}
	switch kind.MIME.Value {
	case "image/jpeg":
		return &Raster{Data: data, Type: "JPG", Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}, nil
	case "image/png":
		return &Raster{Data: data, Type: "PNG", Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}, nil
	}
	return encode(img, jpegQuality)
}

func downscale(img image.Image, maxWidth int) image.Image {
	if maxWidth <= 0 || img.Bounds().Dx() <= maxWidth {
		return img
	}
	return imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
}

// encode keeps transparency as PNG, everything else goes to JPEG.
func encode(img image.Image, quality int) (*Raster, error) {
	r := &Raster{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	buf := new(bytes.Buffer)

	if opaque(img) {
		if quality <= 0 {
			quality = 85
		}
		if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("unable to encode jpeg: %w", err)
		}
		r.Type = "JPG"
	} else {
		if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("unable to encode png: %w", err)
		}
		r.Type = "PNG"
	}
	r.Data = buf.Bytes()
	return r, nil
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return true
}

func isSVG(data []byte) bool {
	head := data[:min(len(data), 1024)]
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}
