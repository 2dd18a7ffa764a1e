package images

import (
	"maps"
	"math/rand/v2"
	"sync"
	"time"
)

var generic = []Category{CategoryStandard, CategoryPortrait, CategoryLandscape}

// Sizer assigns display sizes to images. Sizes are cached by url so an image
// keeps its size for the lifetime of the sizer even when it was picked at
// random. Cache is never evicted, call Reset to drop it. Safe for
// concurrent use.
type Sizer struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	cache map[string]Size
}

// NewSizer returns sizer drawing generic sizes from src.
func NewSizer(src rand.Source) *Sizer {
	return &Sizer{
		rnd:   rand.New(src),
		cache: make(map[string]Size),
	}
}

// NewSeededSizer returns sizer with reproducible choices for non zero seed
// and time seeded one otherwise.
func NewSeededSizer(seed int64) *Sizer {
	if seed == 0 {
		now := uint64(time.Now().UnixNano())
		return NewSizer(rand.NewPCG(now, now>>1|1))
	}
	return NewSizer(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// Resolve returns size for image, classifying it on first request.
func (s *Sizer) Resolve(url, alt string) Size {
	s.mu.Lock()
	defer s.mu.Unlock()

	if size, ok := s.cache[url]; ok {
		return size
	}
	cat, ok := Classify(alt)
	if !ok {
		cat = generic[s.rnd.IntN(len(generic))]
	}
	size := SizeOf(cat)
	s.cache[url] = size
	return size
}

// Len returns number of cached entries.
func (s *Sizer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

// Reset drops all cached sizes.
func (s *Sizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.cache)
}

// Snapshot returns copy of the cache.
func (s *Sizer) Snapshot() map[string]Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.cache)
}
