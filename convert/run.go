package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"bookpress/archive"
	"bookpress/book"
	"bookpress/config"
	"bookpress/content"
	"bookpress/fetch"
	"bookpress/images"
	"bookpress/state"
)

// Run renders books from source into every requested format.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("render")

	src, dst, err := setup(ctx, cmd, log)
	if err != nil {
		return err
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.Stringers("formats", env.Formats))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, log)
}

// setup resolves command line arguments and flags shared by render and
// watch into environment.
func setup(ctx context.Context, cmd *cli.Command, log *zap.Logger) (src, dst string, err error) {
	env := state.EnvFromContext(ctx)

	src = cmd.Args().Get(0)
	if len(src) == 0 {
		return "", "", errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return "", "", err
	}

	dst = cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return "", "", fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return "", "", err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.Formats = parseFormats(cmd.StringSlice("to"), log)
	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	if cp := cmd.String("force-zip-cp"); len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	root := src
	if fi, err := os.Stat(src); err == nil && !fi.IsDir() {
		root = filepath.Dir(src)
	}
	client := fetch.New(&env.Cfg.Fetch, root, log)
	if env.Cfg.Document.PDF.FetchImages {
		env.Loader = client
	} else {
		env.Loader = images.FileLoader{Root: root}
	}

	if ref := cmd.String("book"); ref != "" {
		env.BookData, err = client.BookData(ctx, ref)
		if err != nil {
			return "", "", err
		}
		log.Debug("Book data loaded", zap.String("from", ref), zap.Int("chapters", len(env.BookData.BookChapter)))
	}
	return src, dst, nil
}

// parseFormats drops unknown names, html is used when nothing is left.
func parseFormats(names []string, log *zap.Logger) []config.OutputFmt {
	var formats []config.OutputFmt
	for _, name := range names {
		for part := range strings.SplitSeq(name, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			f, err := config.ParseOutputFmt(part)
			if err != nil {
				log.Warn("Unknown output format requested, ignoring", zap.Error(err))
				continue
			}
			if !slices.Contains(formats, f) {
				formats = append(formats, f)
			}
		}
	}
	if len(formats) == 0 {
		formats = []config.OutputFmt{config.OutputFmtHtml}
	}
	return formats
}

// process handles the core conversion logic independently of CLI framework. It
// determines the input type (directory, archive, or single file) and processes
// accordingly.
func process(ctx context.Context, src, dst string, log *zap.Logger) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, dst, log); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		archive, err := isArchiveFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if archive {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := processArchive(ctx, head, filepath.ToSlash(tail), "", dst, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		book, enc, err := isBookFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check file type: %w", err)
		}
		if book && len(tail) == 0 {
			// we have book, it cannot have tail
			file, err := os.Open(head)
			if err != nil {
				return fmt.Errorf("unable to open book: %w", err)
			}
			defer file.Close()
			if err := processBook(ctx, selectReader(file, enc), filepath.Base(head), dst, log); err != nil {
				return fmt.Errorf("unable to process file (%s): %w", head, err)
			}
			break
		}
		return fmt.Errorf("input was not recognized as book source (%s)", head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks directory tree in natural order finding book sources and
// archives and processes them. Failure of a single book does not stop
// processing.
func processDir(ctx context.Context, dir, dst string, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			if path == dir {
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
		return err
	}
	slices.SortFunc(paths, naturalCompare)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		archive, err := isArchiveFile(path)
		if err != nil {
			// checking format - but cannot open target file
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			continue
		}
		if archive {
			if err := processArchive(ctx, path, "", filepath.Dir(strings.TrimPrefix(path, dir)), dst, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			continue
		}

		book, enc, err := isBookFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			continue
		}
		if !book {
			log.Debug("Skipping file, not recognized as book or archive", zap.String("file", path))
			continue
		}

		count++
		src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		if err := processFile(ctx, path, enc, src, dst, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
	}
	return nil
}

func processFile(ctx context.Context, path string, enc srcEncoding, src, dst string, log *zap.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return processBook(ctx, selectReader(file, enc), src, dst, log)
}

func naturalCompare(a, b string) int {
	switch {
	case a == b:
		return 0
	case natural.Less(a, b):
		return -1
	}
	return 1
}

// processArchive walks all files inside archive, finds book sources under
// "pathIn" and processes them.
func processArchive(ctx context.Context, path, pathIn, pathOut, dst string, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	err = archive.Walk(path, pathIn, func(archive string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		book, enc, err := isBookInArchive(f)
		if err != nil {
			log.Warn("Skipping file in archive",
				zap.String("archive", archive), zap.String("path", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		if !book {
			log.Debug("Skipping file, not recognized as book", zap.String("archive", archive), zap.String("file", f.FileHeader.Name))
			return nil
		}

		count++

		r, err := f.Open()
		if err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", archive), zap.String("file", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		defer r.Close()

		cp := state.EnvFromContext(ctx).CodePage

		pathInArchive := f.FileHeader.Name
		if cp != nil && f.FileHeader.NonUTF8 {
			// forcing zip file name encoding
			if n, err := cp.NewDecoder().String(pathInArchive); err == nil {
				pathInArchive = n
			} else {
				n, _ = ianaindex.IANA.Name(cp)
				log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", n), zap.String("path", pathInArchive), zap.Error(err))
			}
		}
		if err := processBook(ctx, selectReader(r, enc), filepath.Join(pathOut, pathInArchive), dst, log); err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", archive), zap.String("file", f.FileHeader.Name), zap.Error(err))
		}
		return nil
	})
	return err
}

// processBook renders single book source into every requested format. "src"
// is part of the source path (always including file name) relative to the
// original path. "dst" is the destination directory.
func processBook(ctx context.Context, r io.Reader, src string, dst string, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	var (
		refID   string
		outputs []string
	)

	log.Info("Rendering starting", zap.String("from", src))
	defer func(start time.Time) {
		// one broken book should not stop processing of the others
		if r := recover(); r != nil {
			log.Error("Rendering ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.Strings("to", outputs), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("rendering panic: %v", r)
		} else {
			log.Info("Rendering completed", zap.Duration("elapsed", time.Since(start)), zap.Strings("to", outputs), zap.String("ref_id", refID))
		}
	}(time.Now())

	c, err := loadContent(ctx, r, src, env.BookData, log)
	if err != nil {
		return err
	}
	refID = c.ID.String()

	for _, format := range env.Formats {
		if err := ctx.Err(); err != nil {
			return err
		}

		outputName := buildOutputPath(c, src, dst, format, env)
		if err := prepareOutput(outputName, env.Overwrite, log); err != nil {
			return err
		}
		if err := writeOutput(ctx, c, format, outputName, log); err != nil {
			return fmt.Errorf("unable to generate %s output: %w", format, err)
		}
		outputs = append(outputs, outputName)

		// Store rendering result for debugging
		if env.Rpt != nil {
			env.Rpt.Store(fmt.Sprintf("result-%s%s", refID, format.Ext()), outputName)
		}
	}
	return nil
}

// loadContent reads book source. JSON sources hold book record, anything
// else is AI generated content optionally merged with record given on
// command line.
func loadContent(ctx context.Context, r io.Reader, src string, data *book.Data, log *zap.Logger) (*content.Content, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read book source (%s): %w", src, err)
	}

	text := string(raw)
	kind := kindOf(src)
	if kind == inputData {
		if data, err = book.LoadData(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("unable to parse book record (%s): %w", src, err)
		}
		text = ""
	}

	c, err := content.Prepare(ctx, text, data, content.Options{SrcName: src, HTML: kind == inputHTML}, log)
	if err != nil {
		return nil, fmt.Errorf("unable to parse book source (%s): %w", src, err)
	}
	return c, nil
}

func prepareOutput(outputName string, overwrite bool, log *zap.Logger) error {
	if _, err := os.Stat(outputName); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		return os.Remove(outputName)
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	return nil
}
