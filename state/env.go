// Package state defines shared program state.
package state

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"bookpress/book"
	"bookpress/config"
	"bookpress/images"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// used by render and watch subcommands
	NoDirs    bool
	Overwrite bool
	Formats   []config.OutputFmt
	CodePage  encoding.Encoding
	// user stylesheet, already sanitized, appended to built-in styles
	UserStyle []byte
	// optional structured record merged into every rendered book
	BookData *book.Data
	// image source for fixed layout outputs, local files only when nil
	Loader images.Loader

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

// WithEnv attaches existing environment to ctx, used to carry it into
// contexts created elsewhere (HTTP requests).
func WithEnv(ctx context.Context, env *LocalEnv) context.Context {
	return context.WithValue(ctx, envKey{}, env)
}

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start:   time.Now(),
		Formats: []config.OutputFmt{config.OutputFmtHtml},
	}
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}
