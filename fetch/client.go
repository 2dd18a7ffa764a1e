// Package fetch downloads book records and images from the authoring
// backend.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"bookpress/book"
	"bookpress/config"
	"bookpress/images"
)

// Client fetches remote resources with retries, local paths and data URIs
// are served by file loader. Client implements images.Loader.
type Client struct {
	rc    *resty.Client
	local images.FileLoader
	log   *zap.Logger
}

// New creates client. Relative local paths are resolved against root.
func New(cfg *config.FetchConfig, root string, log *zap.Logger) *Client {
	log = log.Named("fetch")

	rc := resty.New().
		SetLogger(log.Sugar()).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(max(cfg.RetryWait*4, cfg.RetryWait)).
		SetHeader("User-Agent", cfg.UserAgent).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	if token := cfg.Token.Value(); token != "" {
		rc.SetAuthToken(token)
	}
	return &Client{rc: rc, local: images.FileLoader{Root: root}, log: log}
}

// IsRemote reports whether source has to be downloaded.
func IsRemote(src string) bool {
	s := strings.ToLower(strings.TrimSpace(src))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Load returns bytes of image referenced by src.
func (c *Client) Load(ctx context.Context, src string) ([]byte, error) {
	if !IsRemote(src) {
		return c.local.Load(ctx, src)
	}
	return c.get(ctx, src, "image/*")
}

// BookData loads book record from url or local file.
func (c *Client) BookData(ctx context.Context, src string) (*book.Data, error) {
	var (
		data []byte
		err  error
	)
	if IsRemote(src) {
		data, err = c.get(ctx, src, "application/json")
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load book data: %w", err)
	}
	return book.LoadData(bytes.NewReader(data))
}

func (c *Client) get(ctx context.Context, url, accept string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.log.Debug("Fetching", zap.String("url", url))
	resp, err := c.rc.R().SetContext(ctx).SetHeader("Accept", accept).Get(url)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, &StatusError{URL: url, Code: resp.StatusCode()}
	}
	c.log.Debug("Fetched", zap.String("url", url), zap.Int("size", len(resp.Body())), zap.Duration("elapsed", resp.Time()))
	return resp.Body(), nil
}

// StatusError reports unsuccessful HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unable to fetch %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}
