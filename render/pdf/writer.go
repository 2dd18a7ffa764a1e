package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"bookpress/book"
	"bookpress/config"
	"bookpress/content"
	"bookpress/images"
	"bookpress/markup"
	"bookpress/misc"
)

// pixels to millimeters at 96 DPI
const pxMM = 25.4 / 96

type imageRef struct {
	name string
	w, h float64
}

// writer lays out prepared sections. Every section starts a new page, in
// fixed mode (slides) section never leaves its page and overflowing
// content is cut.
type writer struct {
	ctx    context.Context
	pdf    *gofpdf.Fpdf
	c      *content.Content
	cfg    *config.DocumentConfig
	loader images.Loader
	log    *zap.Logger

	fixed    bool
	fontSize float64
	margin   float64
	pageW    float64
	pageH    float64

	// per section: internal link and first physical page
	links  []int
	starts []int
	images map[string]imageRef
	kind   book.SectionKind
}

func newWriter(ctx context.Context, c *content.Content, cfg *config.DocumentConfig, loader images.Loader, fixed bool, log *zap.Logger) *writer {
	orientation := "P"
	if fixed {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", cfg.PDF.PageSize.PDFName(), "")
	addFonts(pdf)

	m := cfg.PDF.Margin
	pdf.SetMargins(m, m, m)
	pdf.SetAutoPageBreak(!fixed, m)
	pdf.SetTitle(c.Info.Title, true)
	pdf.SetAuthor(c.Info.Author, true)
	pdf.SetSubject(c.Description, true)
	pdf.SetCreator(misc.GetAppName()+" "+misc.GetVersion(), true)

	if loader == nil {
		loader = images.FileLoader{}
	}
	w := &writer{
		ctx:      ctx,
		pdf:      pdf,
		c:        c,
		cfg:      cfg,
		loader:   loader,
		log:      log,
		fixed:    fixed,
		fontSize: cfg.PDF.FontSize,
		margin:   m,
		links:    make([]int, len(c.Sections)),
		starts:   make([]int, len(c.Sections)),
		images:   make(map[string]imageRef),
	}
	if fixed {
		w.fontSize *= 1.2
	}
	w.pageW, w.pageH = pdf.GetPageSize()
	for i := range w.links {
		w.links[i] = pdf.AddLink()
	}
	pdf.SetFooterFunc(w.footer)
	return w
}

func (w *writer) contentWidth() float64 {
	return w.pageW - 2*w.margin
}

// limit is the lowest y content may reach.
func (w *writer) limit() float64 {
	return w.pageH - w.margin
}

func (w *writer) footer() {
	if !w.cfg.PDF.PageNumbers || w.kind == book.SectionCover || w.kind == book.SectionBackCover {
		return
	}
	label := strconv.Itoa(w.pdf.PageNo())
	if w.fixed {
		label += " / " + strconv.Itoa(len(w.c.Sections))
	}
	w.pdf.SetY(-(w.margin/2 + 4))
	w.pdf.SetFont(familyText, "", w.fontSize*0.8)
	w.pdf.SetTextColor(120, 120, 120)
	w.pdf.CellFormat(0, 6, label, "", 0, "C", false, 0, "")
	w.pdf.SetTextColor(0, 0, 0)
}

// section starts new page and draws section i.
func (w *writer) section(i int) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	s := &w.c.Sections[i]

	w.pdf.AddPage()
	w.kind = s.Kind
	w.starts[i] = w.pdf.PageNo()
	w.pdf.SetLink(w.links[i], 0, -1)
	w.pdf.SetTextColor(0, 0, 0)

	switch s.Kind {
	case book.SectionCover:
		w.cover()
	case book.SectionContents:
		w.heading(s.Title, 1)
		w.contents()
	case book.SectionBackCover:
		if w.c.BackCoverImage != "" {
			w.image(w.c.BackCoverImage, "", images.SizeOf(images.CategoryPortrait), w.pageH/2)
		}
		w.blocks(s.Blocks, "")
	case book.SectionDedication:
		w.pdf.SetY(w.pageH / 3)
		w.heading(s.Title, 2)
		w.blocks(s.Blocks, "I")
	default:
		w.heading(s.Title, 1)
		w.blocks(s.Blocks, "")
	}

	if w.pdf.Err() {
		return fmt.Errorf("unable to lay out %s: %w", s.Kind, w.pdf.Error())
	}
	return nil
}

func (w *writer) cover() {
	info := w.c.Info
	if w.c.CoverImage != "" {
		w.image(w.c.CoverImage, "", images.SizeOf(images.CategoryPortrait), w.pageH*0.45)
	} else {
		w.pdf.SetY(w.pageH * 0.3)
	}

	title := info.Title
	if title == "" {
		title = "Untitled"
	}
	size := w.fontSize * 2.4
	w.pdf.SetFont(familyText, "B", size)
	w.pdf.MultiCell(0, lineHeight(size), title, "", "C", false)

	if info.Author != "" {
		size = w.fontSize * 1.3
		w.pdf.Ln(lineHeight(size) / 2)
		w.pdf.SetFont(familyText, "", size)
		w.pdf.MultiCell(0, lineHeight(size), info.Author, "", "C", false)
	}
	if info.Publisher != "" {
		w.pdf.SetFont(familyText, "", w.fontSize)
		w.pdf.MultiCell(0, lineHeight(w.fontSize), info.Publisher, "", "C", false)
	}
	if info.CoverDesign != "" {
		size = w.fontSize * 0.85
		w.pdf.SetY(w.limit() - 3*lineHeight(size))
		w.pdf.SetFont(familyText, "I", size)
		w.pdf.SetTextColor(100, 100, 100)
		w.pdf.MultiCell(0, lineHeight(size), info.CoverDesign, "", "C", false)
		w.pdf.SetTextColor(0, 0, 0)
	}
}

func pageAlias(i int) string {
	return "{page:" + strconv.Itoa(i) + "}"
}

// contents draws table of contents. Page numbers are aliases resolved when
// document is finished, so they stay correct when sections before them
// overflow onto more pages.
func (w *writer) contents() {
	h := lineHeight(w.fontSize) * 1.2
	numW := 16.0
	titleW := w.contentWidth() - numW

	for _, e := range w.c.Info.TableOfContents {
		if w.overflow() {
			return
		}
		link, number := 0, e.Page
		if page := w.c.ContentsPage(e); page > 0 {
			link, number = w.links[page-1], pageAlias(page-1)
		}
		w.pdf.SetFont(familyText, "", w.fontSize)
		w.pdf.CellFormat(titleW, h, w.fit(e.Title, titleW-2), "", 0, "L", false, link, "")
		w.pdf.SetFont(familyNumbers, "", w.fontSize)
		w.pdf.CellFormat(numW, h, number, "", 1, "L", false, link, "")
	}
}

// finish resolves page aliases.
func (w *writer) finish() {
	for i, p := range w.starts {
		w.pdf.RegisterAlias(pageAlias(i), strconv.Itoa(p))
	}
}

func (w *writer) overflow() bool {
	return w.fixed && w.pdf.GetY() > w.limit()-lineHeight(w.fontSize)
}

func (w *writer) heading(title string, level int) {
	if title == "" {
		return
	}
	size := w.fontSize * headingScale(level)
	w.pdf.SetFont(familyText, "B", size)
	w.pdf.MultiCell(0, lineHeight(size), title, "", "L", false)
	w.pdf.Ln(lineHeight(size) / 2)
}

func (w *writer) blocks(blocks []markup.Block, base string) {
	for i, b := range blocks {
		if w.overflow() {
			w.log.Debug("Page content cut", zap.Stringer("section", w.kind), zap.Int("blocks left", len(blocks)-i))
			w.pdf.SetFont(familyText, "", w.fontSize)
			w.pdf.CellFormat(0, lineHeight(w.fontSize), "…", "", 1, "R", false, 0, "")
			return
		}
		w.block(b, base)
	}
}

func (w *writer) block(b markup.Block, base string) {
	lh := lineHeight(w.fontSize)
	switch b.Kind {
	case markup.BlockHeading:
		level := b.Level + 1
		size := w.fontSize * headingScale(level)
		w.pdf.Ln(lh / 2)
		w.spans(b.Spans, size, "B")
		w.pdf.Ln(lh / 3)

	case markup.BlockParagraph:
		w.spans(b.Spans, w.fontSize, base)
		w.pdf.Ln(lh / 2)

	case markup.BlockListItem:
		indent := 6 * float64(max(b.Level, 1))
		w.pdf.SetLeftMargin(w.margin + indent)
		if b.Marker != "" {
			w.pdf.SetX(w.margin + indent - 5)
			w.pdf.SetFont(familyText, base, w.fontSize)
			w.pdf.Write(lh, b.Marker+" ")
		} else {
			w.pdf.SetX(w.margin + indent)
		}
		w.spans(b.Spans, w.fontSize, base)
		w.pdf.SetLeftMargin(w.margin)
		w.pdf.Ln(lh / 4)

	case markup.BlockQuote:
		y0, page := w.pdf.GetY(), w.pdf.PageNo()
		w.pdf.SetLeftMargin(w.margin + 8)
		w.pdf.SetX(w.margin + 8)
		w.pdf.SetTextColor(80, 80, 80)
		w.spans(b.Spans, w.fontSize, "I")
		w.pdf.SetTextColor(0, 0, 0)
		w.pdf.SetLeftMargin(w.margin)
		if page == w.pdf.PageNo() {
			w.pdf.SetDrawColor(180, 180, 180)
			w.pdf.SetLineWidth(0.8)
			w.pdf.Line(w.margin+3, y0, w.margin+3, w.pdf.GetY())
			w.pdf.SetLineWidth(0.2)
			w.pdf.SetDrawColor(0, 0, 0)
		}
		w.pdf.Ln(lh / 2)

	case markup.BlockRule:
		y := w.pdf.GetY() + lh/2
		w.pdf.SetDrawColor(160, 160, 160)
		w.pdf.Line(w.margin, y, w.pageW-w.margin, y)
		w.pdf.SetDrawColor(0, 0, 0)
		w.pdf.Ln(lh)

	case markup.BlockCode:
		size := w.fontSize * 0.85
		w.pdf.SetFont(familyMono, "", size)
		w.pdf.SetFillColor(242, 242, 242)
		w.pdf.MultiCell(0, lineHeight(size), b.Text, "", "L", true)
		w.pdf.Ln(lh / 2)

	case markup.BlockTable:
		w.table(b)
		w.pdf.Ln(lh / 2)

	case markup.BlockImage:
		w.image(b.URL, b.Alt, b.Size, 0)
	}
}

// spans writes inline runs as flowing text and ends the line.
func (w *writer) spans(spans []markup.Span, size float64, base string) {
	h := lineHeight(size)
	for _, s := range spans {
		family, style := familyText, base
		if s.Bold && !strings.Contains(style, "B") {
			style = "B" + style
		}
		if s.Italic && !strings.Contains(style, "I") {
			style += "I"
		}
		if s.Code {
			family, style = familyMono, ""
		}
		if s.Link != "" {
			w.pdf.SetFont(family, style+"U", size)
			w.pdf.SetTextColor(30, 80, 160)
			w.pdf.WriteLinkString(h, s.Text, s.Link)
			w.pdf.SetTextColor(0, 0, 0)
			continue
		}
		w.pdf.SetFont(family, style, size)
		w.pdf.Write(h, s.Text)
	}
	w.pdf.Ln(h)
}

func (w *writer) table(b markup.Block) {
	cols := 0
	for _, r := range b.Rows {
		cols = max(cols, len(r))
	}
	if cols == 0 {
		return
	}
	size := w.fontSize * 0.9
	h := lineHeight(size) * 1.2
	cw := w.contentWidth() / float64(cols)

	w.pdf.SetFillColor(235, 235, 235)
	for i, row := range b.Rows {
		if w.overflow() {
			return
		}
		header := b.Header && i == 0
		style := ""
		if header {
			style = "B"
		}
		w.pdf.SetFont(familyText, style, size)
		for j := range cols {
			var cell string
			if j < len(row) {
				cell = row[j]
			}
			w.pdf.CellFormat(cw, h, w.fit(cell, cw-2), "1", 0, "L", header, 0, "")
		}
		w.pdf.Ln(h)
	}
}

// fit shortens text to width.
func (w *writer) fit(s string, width float64) string {
	if w.pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && w.pdf.GetStringWidth(string(r)+"…") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}

// image draws centered image with optional caption. Image which cannot be
// loaded is replaced with placeholder of the same size. maxH of 0 means
// no limit besides page.
func (w *writer) image(src, alt string, size images.Size, maxH float64) {
	ref, ok := w.loadImage(src, size)
	if !ok {
		return
	}

	width := min(w.contentWidth(), float64(size.Width)*pxMM)
	height := width * ref.h / ref.w
	if maxH > 0 && height > maxH {
		width, height = width*maxH/height, maxH
	}
	if w.fixed {
		room := w.limit() - w.pdf.GetY() - lineHeight(w.fontSize)*2
		if room < 15 {
			return
		}
		if height > room {
			width, height = width*room/height, room
		}
	}
	x := w.margin + (w.contentWidth()-width)/2
	w.pdf.ImageOptions(ref.name, x, 0, width, height, true, gofpdf.ImageOptions{}, 0, "")

	if alt != "" {
		size := w.fontSize * 0.85
		w.pdf.Ln(1)
		w.pdf.SetFont(familyText, "I", size)
		w.pdf.SetTextColor(90, 90, 90)
		w.pdf.MultiCell(0, lineHeight(size), alt, "", "C", false)
		w.pdf.SetTextColor(0, 0, 0)
	}
	w.pdf.Ln(lineHeight(w.fontSize) / 2)
}

func (w *writer) loadImage(src string, size images.Size) (imageRef, bool) {
	key := src + "|" + size.Category.String()
	if ref, ok := w.images[key]; ok {
		return ref, true
	}

	r, err := w.fetchImage(src)
	if err != nil {
		w.log.Warn("Unable to load image, using placeholder", zap.String("src", src), zap.Error(err))
		if r, err = w.placeholder(size); err != nil {
			w.log.Error("Unable to create placeholder", zap.Error(err))
			return imageRef{}, false
		}
	}

	ref := imageRef{name: fmt.Sprintf("image-%d", len(w.images)+1)}
	info := w.pdf.RegisterImageOptionsReader(ref.name, gofpdf.ImageOptions{ImageType: strings.ToLower(r.Type)}, bytes.NewReader(r.Data))
	if w.pdf.Err() || info == nil {
		// drop broken image and keep the document going
		w.log.Warn("Unable to embed image", zap.String("src", src), zap.Error(w.pdf.Error()))
		w.pdf.ClearError()
		return imageRef{}, false
	}
	ref.w, ref.h = info.Width(), info.Height()
	if ref.w <= 0 || ref.h <= 0 {
		ref.w, ref.h = float64(size.Width), float64(size.Height)
	}
	w.images[key] = ref
	return ref, true
}

func (w *writer) fetchImage(src string) (*images.Raster, error) {
	data, err := w.loader.Load(w.ctx, src)
	if err != nil {
		return nil, err
	}
	return images.Prepare(data, w.cfg.Images.MaxWidth, w.cfg.Images.JPEGQuality)
}

func (w *writer) placeholder(size images.Size) (*images.Raster, error) {
	data, err := images.PlaceholderPNG(size.Width, size.Height)
	if err != nil {
		return nil, err
	}
	return &images.Raster{Data: data, Type: "PNG", Width: size.Width, Height: size.Height}, nil
}
