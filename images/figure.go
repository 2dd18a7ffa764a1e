package images

import (
	"fmt"
	"html"
	"strings"
)

// Figure returns HTML figure for image. Broken image is swapped for inline
// placeholder on the client.
func Figure(alt, url string, size Size) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<figure class="book-image image-%s" style="max-width:%dpx">`, size.Category, size.Width)
	fmt.Fprintf(&b, `<img src="%s" alt="%s" width="%d" height="%d" loading="lazy" onerror="this.onerror=null;this.src='%s'">`,
		html.EscapeString(url), html.EscapeString(alt), size.Width, size.Height, PlaceholderDataURI())
	if alt != "" {
		fmt.Fprintf(&b, `<figcaption>%s</figcaption>`, html.EscapeString(alt))
	}
	b.WriteString(`</figure>`)
	return b.String()
}

// FormatHTML replaces every image marker in text with a figure. Malformed
// markers stay as they are.
func FormatHTML(text string, sizer *Sizer) string {
	return Replace(text, func(t Token) string {
		return Figure(t.Alt, t.URL, sizer.Resolve(t.URL, t.Alt))
	})
}
