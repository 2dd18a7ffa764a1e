package markup

import (
	"fmt"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/dom"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/strikethrough"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var mdConverter = sync.OnceValue(func() *converter.Converter {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
			strikethrough.NewStrikethroughPlugin(),
		),
	)
	conv.Register.RendererFor("figure", converter.TagTypeBlock, renderFigure, converter.PriorityEarly)
	return conv
})

// renderFigure collapses figures produced by ToHTML back into image markers
// so sizes are picked again on the next render.
func renderFigure(_ converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	var img, caption *html.Node
	for _, c := range dom.AllNodes(n) {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "img":
			if img == nil {
				img = c
			}
		case "figcaption":
			caption = c
		}
	}
	if img == nil {
		return converter.RenderTryNext
	}

	alt := strings.TrimSpace(dom.GetAttributeOr(img, "alt", ""))
	if alt == "" && caption != nil {
		alt = strings.TrimSpace(dom.CollectText(caption))
	}
	alt = strings.NewReplacer("[", "", "]", "", "\n", " ").Replace(alt)

	w.WriteString("\n\n![" + alt + "](" + dom.GetAttributeOr(img, "src", "") + ")\n\n")
	return converter.RenderSuccess
}

// ToMarkdown converts rich text editor HTML back into markdown. Scripts,
// styles and editor artifacts are dropped first.
func ToMarkdown(input string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return "", fmt.Errorf("unable to parse html: %w", err)
	}
	clean(doc)

	body, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("unable to serialize html: %w", err)
	}
	md, err := mdConverter().ConvertString(body)
	if err != nil {
		return "", fmt.Errorf("unable to convert html to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

func clean(doc *goquery.Document) {
	doc.Find("script, style, noscript, template, .ql-cursor").Remove()

	// unwrap containers editors put around content
	doc.Find("div.ql-editor, font, span:not([class]):not([style])").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithSelection(s.Contents())
	})

	// empty paragraphs editors use as spacing
	doc.Find("p").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == "" && s.Find("img").Length() == 0
	}).Remove()
}

// PlainText returns text content of HTML fragment with block elements
// separated by blank lines.
func PlainText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	doc.Find("script, style, figure").Remove()

	var parts []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, blockquote, pre, td").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("p, li, blockquote, td").Length() > 0 {
			return
		}
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return strings.Join(strings.Fields(doc.Text()), " ")
	}
	return strings.Join(parts, "\n\n")
}
