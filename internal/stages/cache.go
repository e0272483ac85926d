// cache.go implements the retrieval cache as two stages over one store.
//
// The lookup stage runs early in before_retrieval and short-circuits the
// run on a hit. The fill stage runs last and records what the run
// produced. Any write to a code (store, update, removal) bumps the code's
// generation; entries are keyed by generation, so older ones become
// unreachable and age out.
//
// Design: the lookup stage computes the key, generation included, and
// carries it on the document to the fill stage. A retrieval racing a store
// therefore files its result under the generation it started with, and
// under the revision as requested, so "latest" and an explicit number are
// cached apart.

package stages

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jpl-au/dms/internal/document"
	"github.com/jpl-au/dms/internal/plugin"
)

// DefaultCacheTTL is how long an entry lives when no ttl is configured.
const DefaultCacheTTL = 10 * time.Minute

const optCacheKey = "cache.key"

// Cache holds retrieval results shared by a CacheLookup and a CacheFill.
type Cache struct {
	entries *gocache.Cache

	mu   sync.Mutex
	gens map[string]uint64
}

type cached struct {
	data      []byte
	mimetype  string
	extension string
	revision  int
	current   document.Metadata
	tags      []string
}

// NewCache returns an empty cache whose entries expire after ttl.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		entries: gocache.New(ttl, 2*ttl),
		gens:    make(map[string]uint64),
	}
}

func (c *Cache) generation(code string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[code]
}

// Invalidate drops every cached view of code.
func (c *Cache) Invalidate(code string) {
	c.mu.Lock()
	c.gens[code]++
	c.mu.Unlock()
}

// Len returns the number of live entries.
func (c *Cache) Len() int { return c.entries.ItemCount() }

// cacheKey includes any quoted hashcode so a wrong one misses and goes on
// to be refused by the hashcode stage.
func cacheKey(doc *document.Document, gen uint64) string {
	return doc.Code + "|" + strconv.FormatUint(gen, 10) + "|" +
		strconv.Itoa(doc.Revision) + "|" + doc.RequestedExtension + "|" + doc.Option(OptHashcode)
}

// CacheLookup serves retrievals from a Cache and invalidates it on writes.
type CacheLookup struct {
	base
	cache *Cache
}

// NewCacheLookup returns the lookup and invalidation stage for cache.
func NewCacheLookup(name string, cache *Cache) *CacheLookup {
	return &CacheLookup{
		base: base{
			info: plugin.Info{
				Name:        name,
				Title:       "Cache",
				Description: "Serves repeated retrievals from memory",
				Class:       plugin.ClassCache,
				Order:       -10,
				Active:      true,
			},
			orders: map[plugin.Point]int{
				plugin.Storage:       110,
				plugin.BeforeRemoval: 110,
				plugin.BeforeUpdate:  110,
			},
			points: []plugin.Point{plugin.Storage, plugin.BeforeRetrieval, plugin.BeforeRemoval, plugin.BeforeUpdate},
		},
		cache: cache,
	}
}

// Work implements plugin.Stage.
func (l *CacheLookup) Work(_ context.Context, point plugin.Point, doc *document.Document) plugin.Outcome {
	if point != plugin.BeforeRetrieval {
		l.cache.Invalidate(doc.Code)
		return plugin.Continue()
	}
	if doc.Options.OnlyMetadata {
		return plugin.Continue()
	}

	key := cacheKey(doc, l.cache.generation(doc.Code))
	doc.SetOption(optCacheKey, key)
	v, ok := l.cache.entries.Get(key)
	if !ok {
		return plugin.Continue()
	}
	e, ok := v.(*cached)
	if !ok {
		return plugin.Continue()
	}
	slog.Debug("cache hit", "code", doc.Code, "revision", doc.Revision)

	doc.Buffer = slices.Clone(e.data)
	doc.Mimetype = e.mimetype
	doc.Extension = e.extension
	doc.Revision = e.revision
	doc.Current = e.current
	doc.Tags = slices.Clone(e.tags)
	return plugin.ShortCircuit()
}

// CacheFill records the final result of a retrieval.
type CacheFill struct {
	base
	cache *Cache
}

// NewCacheFill returns the fill stage for cache.
func NewCacheFill(name string, cache *Cache) *CacheFill {
	return &CacheFill{
		base: base{
			info: plugin.Info{
				Name:        name,
				Title:       "Cache fill",
				Description: "Records retrieval results for the cache",
				Class:       plugin.ClassCache,
				Order:       1000,
				Active:      true,
			},
			points: []plugin.Point{plugin.BeforeRetrieval},
		},
		cache: cache,
	}
}

// Work implements plugin.Stage.
func (f *CacheFill) Work(_ context.Context, _ plugin.Point, doc *document.Document) plugin.Outcome {
	if doc.Options.OnlyMetadata || doc.Buffer == nil {
		return plugin.Continue()
	}
	key := doc.Option(optCacheKey)
	if key == "" {
		// No lookup ran in this pipeline, so there is no safe generation.
		return plugin.Continue()
	}
	f.cache.entries.SetDefault(key, &cached{
		data:      slices.Clone(doc.Buffer),
		mimetype:  doc.Mimetype,
		extension: doc.Extension,
		revision:  doc.Revision,
		current:   doc.Current,
		tags:      slices.Clone(doc.Tags),
	})
	return plugin.Continue()
}
