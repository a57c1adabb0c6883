package httpcache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry struct {
	status   int
	header   http.Header
	body     []byte
	etag     string
	storedAt time.Time
}

// Cache is a bounded LRU of GET responses.
type Cache struct {
	ttl     time.Duration
	entries *lru.Cache[string, entry]
}

func newCache(ttl time.Duration, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 512
	}
	if ttl < 0 {
		ttl = 0
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[string, entry](maxEntries)
	return &Cache{ttl: ttl, entries: entries}
}

func (c *Cache) get(key string) (entry, bool) {
	return c.entries.Get(key)
}

func (c *Cache) put(key string, status int, header http.Header, body []byte, storedAt time.Time) entry {
	ent := entry{
		status:   status,
		header:   header.Clone(),
		body:     append([]byte(nil), body...),
		etag:     strings.TrimSpace(header.Get("ETag")),
		storedAt: storedAt,
	}
	c.entries.Add(key, ent)
	return ent
}

func (c *Cache) touch(key string, storedAt time.Time) {
	if ent, ok := c.entries.Get(key); ok {
		ent.storedAt = storedAt
		c.entries.Add(key, ent)
	}
}

// Len reports the number of cached responses.
func (c *Cache) Len() int { return c.entries.Len() }

func fingerprintHeaders(h http.Header, keys []string) string {
	type kv struct {
		k string
		v string
	}
	pairs := make([]kv, 0, len(keys))
	for _, k := range keys {
		k = http.CanonicalHeaderKey(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		v := strings.TrimSpace(h.Get(k))
		if v == "" {
			continue
		}
		pairs = append(pairs, kv{k: k, v: v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].k < pairs[j].k })

	sum := sha256.New()
	for _, p := range pairs {
		sum.Write([]byte(p.k))
		sum.Write([]byte{0})
		sum.Write([]byte(p.v))
		sum.Write([]byte{0})
	}
	return hex.EncodeToString(sum.Sum(nil))
}
