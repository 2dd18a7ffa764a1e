package config

import (
	"fmt"
	"strings"
)

// Requested output type.
// ENUM(html, preview, pdf, slides, markdown)
type OutputFmt int

const (
	OutputFmtHtml OutputFmt = iota
	OutputFmtPreview
	OutputFmtPdf
	OutputFmtSlides
	OutputFmtMarkdown
)

var outputFmtNames = []string{"html", "preview", "pdf", "slides", "markdown"}

// OutputFmtNames returns list of supported output format names.
func OutputFmtNames() []string {
	return append([]string(nil), outputFmtNames...)
}

func (o OutputFmt) String() string {
	if o >= 0 && int(o) < len(outputFmtNames) {
		return outputFmtNames[o]
	}
	return fmt.Sprintf("OutputFmt(%d)", int(o))
}

func (o OutputFmt) IsValid() bool {
	return o >= 0 && int(o) < len(outputFmtNames)
}

// ParseOutputFmt attempts to convert a string to an OutputFmt.
func ParseOutputFmt(name string) (OutputFmt, error) {
	for i, n := range outputFmtNames {
		if strings.EqualFold(n, name) {
			return OutputFmt(i), nil
		}
	}
	return OutputFmt(0), fmt.Errorf("%s is not a valid OutputFmt, try [%s]", name, strings.Join(outputFmtNames, ", "))
}

func (o OutputFmt) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *OutputFmt) UnmarshalText(text []byte) error {
	v, err := ParseOutputFmt(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Ext returns file name extension (with leading dot) for the format.
func (o OutputFmt) Ext() string {
	switch o {
	case OutputFmtHtml:
		return ".html"
	case OutputFmtPreview:
		return ".preview.html"
	case OutputFmtPdf:
		return ".pdf"
	case OutputFmtSlides:
		return ".slides.pdf"
	case OutputFmtMarkdown:
		return ".md"
	default:
		// this should never happen
		panic("unsupported format requested")
	}
}

// MimeType returns content type to use when serving the format.
func (o OutputFmt) MimeType() string {
	switch o {
	case OutputFmtPdf, OutputFmtSlides:
		return "application/pdf"
	case OutputFmtMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/html; charset=utf-8"
	}
}

// PDF page size.
// ENUM(a4, a5, letter)
type PageSize int

const (
	PageSizeA4 PageSize = iota
	PageSizeA5
	PageSizeLetter
)

var pageSizeNames = []string{"a4", "a5", "letter"}

func (p PageSize) String() string {
	if p >= 0 && int(p) < len(pageSizeNames) {
		return pageSizeNames[p]
	}
	return fmt.Sprintf("PageSize(%d)", int(p))
}

// ParsePageSize attempts to convert a string to a PageSize.
func ParsePageSize(name string) (PageSize, error) {
	for i, n := range pageSizeNames {
		if strings.EqualFold(n, name) {
			return PageSize(i), nil
		}
	}
	return PageSize(0), fmt.Errorf("%s is not a valid PageSize, try [%s]", name, strings.Join(pageSizeNames, ", "))
}

func (p PageSize) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PageSize) UnmarshalText(text []byte) error {
	v, err := ParsePageSize(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// PDFName returns size name understood by PDF generator.
func (p PageSize) PDFName() string {
	switch p {
	case PageSizeA5:
		return "A5"
	case PageSizeLetter:
		return "Letter"
	default:
		return "A4"
	}
}
