package server

import (
	"slices"
	"strconv"

	"github.com/maruel/natural"

	"bookpress/content"
)

// Library is immutable set of prepared books addressed by slug.
type Library struct {
	books  []*content.Content
	bySlug map[string]*content.Content
}

// NewLibrary orders books naturally by title and makes slugs unique by
// appending sequence number to repeated ones.
func NewLibrary(books []*content.Content) *Library {
	l := &Library{
		books:  slices.Clone(books),
		bySlug: make(map[string]*content.Content, len(books)),
	}
	slices.SortStableFunc(l.books, func(a, b *content.Content) int {
		switch {
		case natural.Less(a.Info.Title, b.Info.Title):
			return -1
		case natural.Less(b.Info.Title, a.Info.Title):
			return 1
		}
		return 0
	})
	for _, c := range l.books {
		base := c.Slug
		if base == "" {
			base = content.Slug(c.Info.Title)
		}
		slug := base
		for n := 2; l.bySlug[slug] != nil; n++ {
			slug = base + "-" + strconv.Itoa(n)
		}
		c.Slug = slug
		l.bySlug[slug] = c
	}
	return l
}

func (l *Library) Books() []*content.Content {
	return l.books
}

func (l *Library) Get(slug string) (*content.Content, bool) {
	c, ok := l.bySlug[slug]
	return c, ok
}
