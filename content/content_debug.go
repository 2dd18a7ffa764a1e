package content

import (
	"maps"
	"slices"
	"sort"

	"github.com/maruel/natural"

	"bookpress/utils/debug"
)

// String returns a readable tree of the whole Content starting with parsed
// book. It exists solely for manual inspection during debugging.
func (c *Content) String() string {
	if c == nil {
		return "<nil Content>"
	}

	out := c.Info.String()

	tw := debug.NewTreeWriter()
	tw.Line(0, "Reference ID: %s", c.ID)
	tw.Field(0, "Slug", c.Slug)
	tw.Field(0, "Cover image", c.CoverImage)
	tw.Field(0, "Back cover image", c.BackCoverImage)
	tw.Excerpt(0, "Description", c.Description, 120)
	tw.Line(0, "Sections: %d", len(c.Sections))
	for _, s := range c.Sections {
		tw.Line(1, "Page[%d] kind[%s] title[%q] blocks[%d] html[%d]", s.Page, s.Kind, s.Title, len(s.Blocks), len(s.HTML))
		tw.Excerpt(2, "Caption", s.Caption, 80)
	}
	out += "\n" + tw.String()

	if len(c.Diagnostics) > 0 {
		tw := debug.NewTreeWriter()
		tw.Line(0, "Diagnostics: %d", len(c.Diagnostics))
		for _, d := range c.Diagnostics {
			tw.Line(1, "%s", d)
		}
		out += "\n" + tw.String()
	}

	if c.Sizer != nil {
		if sizes := c.Sizer.Snapshot(); len(sizes) > 0 {
			tw := debug.NewTreeWriter()
			tw.Line(0, "Images index: %d", len(sizes))
			keys := slices.Collect(maps.Keys(sizes))
			sort.Sort(natural.StringSlice(keys))
			for _, k := range keys {
				size := sizes[k]
				tw.Line(1, "Image[%q] category[%s] dim[%dx%d]", k, size.Category, size.Width, size.Height)
			}
			out += "\n" + tw.String()
		}
	}
	return out
}
