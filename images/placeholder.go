package images

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"sync"

	"github.com/beevik/etree"
	"github.com/disintegration/imaging"
)

const (
	placeholderWidth  = 600
	placeholderHeight = 400
)

// PlaceholderSVG returns "image unavailable" picture of requested size.
func PlaceholderSVG(w, h int) []byte {
	if w <= 0 || h <= 0 {
		w, h = placeholderWidth, placeholderHeight
	}
	fw, fh := float64(w), float64(h)
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	doc := etree.NewDocument()
	svg := doc.CreateElement("svg")
	svg.CreateAttr("xmlns", "http://www.w3.org/2000/svg")
	svg.CreateAttr("width", strconv.Itoa(w))
	svg.CreateAttr("height", strconv.Itoa(h))
	svg.CreateAttr("viewBox", fmt.Sprintf("0 0 %d %d", w, h))

	bg := svg.CreateElement("rect")
	bg.CreateAttr("x", "1")
	bg.CreateAttr("y", "1")
	bg.CreateAttr("width", num(fw-2))
	bg.CreateAttr("height", num(fh-2))
	bg.CreateAttr("fill", "#f2f2f2")
	bg.CreateAttr("stroke", "#c8c8c8")
	bg.CreateAttr("stroke-width", "2")

	// picture icon: sun and two hills
	unit := min(fw, fh) / 8
	cx, cy := fw/2, fh/2-unit/2

	sun := svg.CreateElement("circle")
	sun.CreateAttr("cx", num(cx+unit))
	sun.CreateAttr("cy", num(cy-unit))
	sun.CreateAttr("r", num(unit/2))
	sun.CreateAttr("fill", "#b4b4b4")

	hills := svg.CreateElement("polygon")
	hills.CreateAttr("points", fmt.Sprintf("%s,%s %s,%s %s,%s %s,%s %s,%s",
		num(cx-2*unit), num(cy+unit),
		num(cx-unit/2), num(cy-unit/2),
		num(cx+unit/2), num(cy+unit/2),
		num(cx+unit), num(cy),
		num(cx+2*unit), num(cy+unit)))
	hills.CreateAttr("fill", "#a0a0a0")

	label := svg.CreateElement("text")
	label.CreateAttr("x", num(cx))
	label.CreateAttr("y", num(cy+2*unit))
	label.CreateAttr("text-anchor", "middle")
	label.CreateAttr("font-family", "sans-serif")
	label.CreateAttr("font-size", num(unit/2))
	label.CreateAttr("fill", "#808080")
	label.SetText("Image unavailable")

	data, err := doc.WriteToBytes()
	if err != nil {
		// document is built in memory, cannot fail
		panic(fmt.Sprintf("unable to serialize placeholder: %v", err))
	}
	return data
}

var placeholderURI = sync.OnceValue(func() string {
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(PlaceholderSVG(0, 0))
})

// PlaceholderDataURI returns default placeholder as data URI suitable for
// src attributes.
func PlaceholderDataURI() string {
	return placeholderURI()
}

// PlaceholderPNG rasterizes placeholder for targets which cannot use SVG.
func PlaceholderPNG(w, h int) ([]byte, error) {
	img, err := RasterizeSVG(PlaceholderSVG(w, h), 0, 0)
	if err != nil {
		return nil, fmt.Errorf("unable to rasterize placeholder: %w", err)
	}
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("unable to encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}
