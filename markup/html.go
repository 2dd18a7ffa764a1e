// Package markup converts book content between markdown, HTML and layout
// blocks used by fixed layout renderers.
package markup

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	ghtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	"bookpress/images"
)

type options struct {
	sizer *images.Sizer
}

// Option changes markdown to HTML conversion.
type Option func(*options)

// WithFigures renders images as sized figures with captions and placeholder
// fallback.
func WithFigures(sizer *images.Sizer) Option {
	return func(o *options) {
		o.sizer = sizer
	}
}

var (
	// "<p><strong>Term</strong>: definition</p>" produced by goldmark and
	// "**Term**: definition" left verbatim inside raw HTML
	glossaryParaRe = regexp.MustCompile(`<p><strong>([^<]+)</strong>\s*:\s*(.*?)</p>`)
	glossaryRawRe  = regexp.MustCompile(`(?m)^\s*\*\*([^*\n]+)\*\*\s*:\s*([^\n<]+)$`)
)

// ToHTML converts markdown into HTML fragment. Raw HTML is passed through.
// Glossary style "**Term**: definition" paragraphs become "<h3>Term</h3>"
// followed by definition paragraph and leftover "**" markers are removed,
// so converting result back to markdown does not restore original text.
func ToHTML(ctx context.Context, markdown string, opts ...Option) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	rendererOpts := []renderer.Option{ghtml.WithUnsafe()}
	if o.sizer != nil {
		rendererOpts = append(rendererOpts, renderer.WithNodeRenderers(util.Prioritized(&figureRenderer{sizer: o.sizer}, 100)))
	}
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(rendererOpts...),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("unable to convert markdown: %w", err)
	}
	return glossaryBlocks(buf.String()), nil
}

func glossaryBlocks(s string) string {
	s = glossaryParaRe.ReplaceAllString(s, "<h3>$1</h3><p>$2</p>")
	s = glossaryRawRe.ReplaceAllString(s, "<h3>$1</h3><p>$2</p>")
	return strings.ReplaceAll(s, "**", "")
}

// figureRenderer overrides images, paragraphs holding a single image are
// rendered without <p> wrapper so figure stays a block element.
type figureRenderer struct {
	sizer *images.Sizer
}

func (r *figureRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindImage, r.renderImage)
	reg.Register(ast.KindParagraph, r.renderParagraph)
}

func (r *figureRenderer) renderImage(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.Image)
	alt := plainText(n, source)
	url := string(n.Destination)
	_, _ = w.WriteString(images.Figure(alt, url, r.sizer.Resolve(url, alt)))
	return ast.WalkSkipChildren, nil
}

func (r *figureRenderer) renderParagraph(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if standaloneImage(node, source) {
		if !entering {
			_ = w.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	}
	if entering {
		_, _ = w.WriteString("<p>")
	} else {
		_, _ = w.WriteString("</p>\n")
	}
	return ast.WalkContinue, nil
}

func standaloneImage(n ast.Node, source []byte) bool {
	count := 0
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Image:
			count++
		case *ast.Text:
			if len(bytes.TrimSpace(c.Value(source))) != 0 {
				return false
			}
		default:
			return false
		}
	}
	return count == 1
}

// plainText collects text of inline children.
func plainText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Value(source))
			if c.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.AutoLink:
			b.Write(c.Label(source))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
