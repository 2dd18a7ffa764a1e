package convert

import (
	"archive/zip"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"bookpress/archive"
	"bookpress/content"
	"bookpress/state"
)

// Load prepares every book source found under src (single file, archive or
// directory tree) without rendering anything. Books are returned in
// natural order of their source paths, unreadable sources are logged and
// skipped.
func Load(ctx context.Context, src string, log *zap.Logger) ([]*content.Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fi, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("input source was not found: %w", err)
	}

	var paths []string
	if fi.IsDir() {
		err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == src {
					return err
				}
				log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
				return nil
			}
			if d.Type().IsRegular() {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		slices.SortFunc(paths, naturalCompare)
	} else {
		paths = []string{src}
	}

	var books []*content.Content
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loaded, err := loadPath(ctx, path, log)
		if err != nil {
			log.Warn("Skipping book source", zap.String("file", path), zap.Error(err))
			continue
		}
		books = append(books, loaded...)
	}
	return books, nil
}

func loadPath(ctx context.Context, path string, log *zap.Logger) ([]*content.Content, error) {
	env := state.EnvFromContext(ctx)

	isArchive, err := isArchiveFile(path)
	if err != nil {
		return nil, err
	}
	if isArchive {
		var books []*content.Content
		err := archive.Walk(path, "", func(_ string, f *zip.File) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ok, enc, err := isBookInArchive(f)
			if err != nil || !ok {
				return nil
			}
			r, err := f.Open()
			if err != nil {
				log.Warn("Unable to open file in archive", zap.String("file", f.Name), zap.Error(err))
				return nil
			}
			defer r.Close()

			c, err := loadContent(ctx, selectReader(r, enc), f.Name, env.BookData, log)
			if err != nil {
				log.Warn("Skipping book in archive", zap.String("file", f.Name), zap.Error(err))
				return nil
			}
			books = append(books, c)
			return nil
		})
		return books, err
	}

	ok, enc, err := isBookFile(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Debug("Skipping file, not recognized as book", zap.String("file", path))
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := loadContent(ctx, selectReader(f, enc), filepath.Base(path), env.BookData, log)
	if err != nil {
		return nil, err
	}
	return []*content.Content{c}, nil
}
