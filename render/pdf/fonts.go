package pdf

import (
	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	familyText = "Go"
	familyMono = "GoMono"
	// core font, page number aliases are replaced in plain (not UTF-16) text
	familyNumbers = "Helvetica"

	// points to millimeters
	ptMM = 0.3528
)

func addFonts(pdf *gofpdf.Fpdf) {
	pdf.AddUTF8FontFromBytes(familyText, "", goregular.TTF)
	pdf.AddUTF8FontFromBytes(familyText, "B", gobold.TTF)
	pdf.AddUTF8FontFromBytes(familyText, "I", goitalic.TTF)
	pdf.AddUTF8FontFromBytes(familyText, "BI", gobolditalic.TTF)
	pdf.AddUTF8FontFromBytes(familyMono, "", gomono.TTF)
}

// lineHeight returns line height in mm for font size in points.
func lineHeight(size float64) float64 {
	return size * ptMM * 1.45
}

func headingScale(level int) float64 {
	switch level {
	case 1:
		return 1.8
	case 2:
		return 1.5
	case 3:
		return 1.25
	default:
		return 1.1
	}
}
