package markup

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"bookpress/images"
)

// BlockKind is layout primitive produced for fixed layout targets.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockListItem
	BlockQuote
	BlockRule
	BlockImage
	BlockCode
	BlockTable
)

var blockNames = []string{"paragraph", "heading", "list-item", "quote", "rule", "image", "code", "table"}

func (k BlockKind) String() string {
	if k >= 0 && int(k) < len(blockNames) {
		return blockNames[k]
	}
	return fmt.Sprintf("BlockKind(%d)", int(k))
}

// Span is a run of inline text sharing the same style.
type Span struct {
	Text   string
	Bold   bool
	Italic bool
	Code   bool
	Strike bool
	Link   string
}

func (s Span) style() Span {
	s.Text = ""
	return s
}

// Block is a single layout primitive.
type Block struct {
	Kind BlockKind
	// heading level or list nesting depth (1 based)
	Level int
	// list item marker: "•" or "3."
	Marker string
	Spans  []Span
	// code block text
	Text string
	// image
	Alt  string
	URL  string
	Size images.Size
	// table rows, first row is header when Header is set
	Rows   [][]string
	Header bool
}

// PlainText returns concatenated span text.
func (b Block) PlainText() string {
	var sb strings.Builder
	for _, s := range b.Spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

var blockParser = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Parse converts markdown into layout blocks. When sizer is not nil image
// sizes are resolved through it so fixed layout matches HTML output.
func Parse(markdown string, sizer *images.Sizer) []Block {
	source := []byte(markdown)
	doc := blockParser.Parser().Parse(text.NewReader(source))

	p := &blockWalker{source: source, sizer: sizer}
	p.children(doc, 0)
	return p.blocks
}

type blockWalker struct {
	source []byte
	sizer  *images.Sizer
	blocks []Block
}

func (p *blockWalker) children(n ast.Node, depth int) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		p.block(c, depth)
	}
}

func (p *blockWalker) block(n ast.Node, depth int) {
	switch n := n.(type) {
	case *ast.Heading:
		p.inlineBlocks(n, Block{Kind: BlockHeading, Level: n.Level})
	case *ast.Paragraph, *ast.TextBlock:
		p.inlineBlocks(n, Block{Kind: BlockParagraph})
	case *ast.ThematicBreak:
		p.blocks = append(p.blocks, Block{Kind: BlockRule})
	case *ast.FencedCodeBlock:
		p.blocks = append(p.blocks, Block{Kind: BlockCode, Text: p.lines(n.Lines())})
	case *ast.CodeBlock:
		p.blocks = append(p.blocks, Block{Kind: BlockCode, Text: p.lines(n.Lines())})
	case *ast.Blockquote:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if c.Kind() == ast.KindParagraph {
				p.inlineBlocks(c, Block{Kind: BlockQuote})
				continue
			}
			p.block(c, depth)
		}
	case *ast.List:
		p.list(n, depth+1)
	case *ast.HTMLBlock:
		p.htmlBlock(p.lines(n.Lines()))
	case *east.Table:
		p.table(n)
	default:
		p.children(n, depth)
	}
}

func (p *blockWalker) list(n *ast.List, depth int) {
	number := n.Start
	for item := n.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "•"
		if n.IsOrdered() {
			marker = fmt.Sprintf("%d.", number)
			number++
		}
		first := true
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			switch c.Kind() {
			case ast.KindParagraph, ast.KindTextBlock:
				if first {
					p.inlineBlocks(c, Block{Kind: BlockListItem, Level: depth, Marker: marker})
				} else {
					p.inlineBlocks(c, Block{Kind: BlockListItem, Level: depth})
				}
			default:
				p.block(c, depth)
			}
			first = false
		}
	}
}

func (p *blockWalker) table(n *east.Table) {
	b := Block{Kind: BlockTable}
	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, plainText(cell, p.source))
		}
		if row.Kind() == east.KindTableHeader {
			b.Header = true
		}
		b.Rows = append(b.Rows, cells)
	}
	p.blocks = append(p.blocks, b)
}

// inlineBlocks flattens inline children into spans of template block,
// images split the block.
func (p *blockWalker) inlineBlocks(n ast.Node, tmpl Block) {
	cur := tmpl
	flush := func() {
		cur.Spans = mergeSpans(cur.Spans)
		if len(cur.Spans) > 0 {
			p.blocks = append(p.blocks, cur)
		}
		cur = tmpl
		// marker belongs to the first part only
		tmpl.Marker = ""
		cur.Marker = ""
	}
	var walk func(n ast.Node, style Span)
	walk = func(n ast.Node, style Span) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch c := c.(type) {
			case *ast.Text:
				s := style
				s.Text = string(c.Value(p.source))
				switch {
				case c.HardLineBreak():
					s.Text += "\n"
				case c.SoftLineBreak():
					s.Text += " "
				}
				cur.Spans = append(cur.Spans, s)
			case *ast.String:
				s := style
				s.Text = string(c.Value)
				cur.Spans = append(cur.Spans, s)
			case *ast.CodeSpan:
				s := style
				s.Code = true
				s.Text = plainText(c, p.source)
				cur.Spans = append(cur.Spans, s)
			case *ast.Emphasis:
				s := style
				if c.Level >= 2 {
					s.Bold = true
				} else {
					s.Italic = true
				}
				walk(c, s)
			case *east.Strikethrough:
				s := style
				s.Strike = true
				walk(c, s)
			case *ast.Link:
				s := style
				s.Link = string(c.Destination)
				walk(c, s)
			case *ast.AutoLink:
				s := style
				s.Link = string(c.URL(p.source))
				s.Text = string(c.Label(p.source))
				cur.Spans = append(cur.Spans, s)
			case *ast.Image:
				if tmpl.Kind == BlockHeading {
					continue
				}
				if len(cur.Spans) > 0 {
					flush()
				}
				p.blocks = append(p.blocks, p.image(c))
			case *ast.RawHTML:
				raw := p.rawSegments(c)
				if b, ok := p.htmlImage(raw); ok {
					if tmpl.Kind == BlockHeading {
						continue
					}
					if len(cur.Spans) > 0 {
						flush()
					}
					p.blocks = append(p.blocks, b)
					continue
				}
				if t := htmlText(raw); t != "" {
					s := style
					s.Text = t
					cur.Spans = append(cur.Spans, s)
				}
			default:
				walk(c, style)
			}
		}
	}
	walk(n, Span{})
	flush()
}

func (p *blockWalker) image(n *ast.Image) Block {
	return p.imageBlock(plainText(n, p.source), string(n.Destination))
}

func (p *blockWalker) imageBlock(alt, url string) Block {
	b := Block{Kind: BlockImage, Alt: alt, URL: url}
	if p.sizer != nil {
		b.Size = p.sizer.Resolve(b.URL, b.Alt)
	} else if cat, ok := images.Classify(b.Alt); ok {
		b.Size = images.SizeOf(cat)
	} else {
		b.Size = images.SizeOf(images.CategoryStandard)
	}
	return b
}

// htmlBlock splits raw HTML block into paragraphs of its text and images in
// document order.
func (p *blockWalker) htmlBlock(raw string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return
	}
	var sb strings.Builder
	flush := func() {
		if t := strings.Join(strings.Fields(sb.String()), " "); t != "" {
			p.blocks = append(p.blocks, Block{Kind: BlockParagraph, Spans: []Span{{Text: t}}})
		}
		sb.Reset()
	}
	var walk func(s *goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				sb.WriteString(c.Text())
			case "#comment", "script", "style":
			case "img":
				if src := strings.TrimSpace(c.AttrOr("src", "")); src != "" {
					flush()
					p.blocks = append(p.blocks, p.imageBlock(strings.TrimSpace(c.AttrOr("alt", "")), src))
				}
			default:
				sb.WriteByte(' ')
				walk(c)
				sb.WriteByte(' ')
			}
		})
	}
	walk(doc.Find("body"))
	flush()
}

// htmlImage recognizes inline "<img>" tag.
func (p *blockWalker) htmlImage(raw string) (Block, bool) {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "<img") {
		return Block{}, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return Block{}, false
	}
	img := doc.Find("img").First()
	src := strings.TrimSpace(img.AttrOr("src", ""))
	if src == "" {
		return Block{}, false
	}
	return p.imageBlock(strings.TrimSpace(img.AttrOr("alt", "")), src), true
}

func (p *blockWalker) lines(lines *text.Segments) string {
	var buf bytes.Buffer
	for i := range lines.Len() {
		seg := lines.At(i)
		buf.Write(seg.Value(p.source))
	}
	return strings.TrimRight(buf.String(), "\n")
}

func (p *blockWalker) rawSegments(n *ast.RawHTML) string {
	var buf bytes.Buffer
	for i := range n.Segments.Len() {
		seg := n.Segments.At(i)
		buf.Write(seg.Value(p.source))
	}
	return buf.String()
}

// mergeSpans joins neighbours with identical style and trims block edges.
func mergeSpans(spans []Span) []Span {
	var res []Span
	for _, s := range spans {
		if s.Text == "" {
			continue
		}
		if n := len(res); n > 0 && res[n-1].style() == s.style() {
			res[n-1].Text += s.Text
			continue
		}
		res = append(res, s)
	}
	if len(res) == 0 {
		return nil
	}
	res[0].Text = strings.TrimLeft(res[0].Text, " \n")
	res[len(res)-1].Text = strings.TrimRight(res[len(res)-1].Text, " \n")
	if res[len(res)-1].Text == "" {
		res = res[:len(res)-1]
	}
	if len(res) > 0 && res[0].Text == "" {
		res = res[1:]
	}
	return res
}

// htmlText returns text of raw HTML, "<br>" alone yields line break.
func htmlText(raw string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "<br") {
		return "\n"
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
