package images

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Loader fetches image bytes referenced by content.
type Loader interface {
	Load(ctx context.Context, src string) ([]byte, error)
}

// LoaderFunc adapts function to Loader.
type LoaderFunc func(ctx context.Context, src string) ([]byte, error)

func (f LoaderFunc) Load(ctx context.Context, src string) ([]byte, error) {
	return f(ctx, src)
}

var ErrUnsupportedSource = errors.New("unsupported image source")

// FileLoader loads local files and data URIs. Relative paths are resolved
// against Root.
type FileLoader struct {
	Root string
}

func (l FileLoader) Load(ctx context.Context, src string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return nil, ErrUnsupportedSource
	case strings.HasPrefix(src, "data:"):
		return DecodeDataURI(src)
	case strings.HasPrefix(src, "file://"):
		u, err := url.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("unable to parse file url: %w", err)
		}
		src = filepath.FromSlash(u.Path)
	case strings.Contains(src, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, src)
	}

	path := src
	if !filepath.IsAbs(path) && l.Root != "" {
		path = filepath.Join(l.Root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read image file: %w", err)
	}
	return data, nil
}

// DecodeDataURI returns payload of "data:[<mediatype>][;base64],<data>".
func DecodeDataURI(uri string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data uri")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("unable to decode data uri: %w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("unable to decode data uri: %w", err)
	}
	return []byte(s), nil
}
