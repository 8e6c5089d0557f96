package scoring

import (
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of alignments kept by NewCache when size
// is not positive.
const DefaultCacheSize = 256

// Cache memoizes Align by (reference, hypothesis, confidences). Live scoring
// re-aligns the same reference on every partial, and most of those calls see
// an unchanged hypothesis.
//
// Results returned from the cache are shared and must be treated as
// read-only. Cache is safe for concurrent use.
type Cache struct {
	entries *lru.Cache[string, Result]
}

// NewCache creates a cache holding up to size alignments.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, Result](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Align returns the memoized alignment or computes and stores it.
func (c *Cache) Align(reference, hypothesis string, confidences []*float64) Result {
	key := cacheKey(reference, hypothesis, confidences)
	if res, ok := c.entries.Get(key); ok {
		return res
	}
	res := Align(reference, hypothesis, confidences)
	c.entries.Add(key, res)
	return res
}

// Len returns the number of cached alignments.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// cacheKey length-prefixes both strings, so no input text can shift the
// boundary between fields.
func cacheKey(reference, hypothesis string, confidences []*float64) string {
	var b strings.Builder
	b.Grow(len(reference) + len(hypothesis) + 8*len(confidences) + 24)
	writeField(&b, reference)
	writeField(&b, hypothesis)
	for _, c := range confidences {
		if c == nil {
			b.WriteByte('?')
		} else {
			b.WriteString(strconv.FormatFloat(*c, 'g', -1, 64))
		}
		b.WriteByte(',')
	}
	return b.String()
}

func writeField(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}
