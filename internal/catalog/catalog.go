// Package catalog caches the per-category species reference catalogs
// fetched from the remote service. Entries persist across sessions with a
// 24 hour TTL and an explicit schema version tag; concurrent cold-cache
// readers share a single outbound fetch.
package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/fieldguide/fieldguide-go/internal/datastore"
	"github.com/fieldguide/fieldguide-go/internal/errors"
	"github.com/fieldguide/fieldguide-go/internal/identity"
	"github.com/fieldguide/fieldguide-go/internal/logging"
)

var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
)

func init() {
	serviceLevelVar.Set(slog.LevelInfo)
	logger, _ = logging.ForService("catalog", serviceLevelVar)
}

// Species is one normalized catalog record. ID is the canonical species ID
// resolved at fetch time; the raw payload's remaining string fields live in
// Attrs.
type Species struct {
	ID             string            `json:"id"`
	CommonName     string            `json:"common_name,omitempty"`
	ScientificName string            `json:"scientific_name,omitempty"`
	Category       string            `json:"category"`
	ImagePath      string            `json:"image_path,omitempty"`
	Attrs          map[string]string `json:"attrs,omitempty"`
}

// Entry is the cached catalog for one category. SchemaVersion replaces the
// original legacy-path substring heuristic: a persisted entry whose tag
// does not match the configured version is refetched, never patched.
type Entry struct {
	Category      string    `json:"category"`
	Records       []Species `json:"records"`
	FetchedAt     time.Time `json:"fetched_at"`
	SchemaVersion int       `json:"schema_version"`
}

// Fetcher is the remote collaborator surface the cache reads through.
// Satisfied by predict.Client.
type Fetcher interface {
	FetchCatalog(ctx context.Context, category string) (map[string]map[string]any, error)
}

// Config holds cache construction parameters.
type Config struct {
	TTL           time.Duration
	SchemaVersion int
}

// DefaultTTL is the catalog freshness window.
const DefaultTTL = 24 * time.Hour

type inflightFetch struct {
	done  chan struct{}
	entry *Entry
	err   error
}

// Cache is the per-category catalog cache.
type Cache struct {
	store   datastore.Interface
	fetcher Fetcher
	config  Config
	mem     *gocache.Cache

	mu       sync.Mutex
	inflight map[string]*inflightFetch
}

// New creates a catalog cache over the given persisted store and fetcher.
func New(store datastore.Interface, fetcher Fetcher, config Config) *Cache {
	if config.TTL == 0 {
		config.TTL = DefaultTTL
	}
	if config.SchemaVersion == 0 {
		config.SchemaVersion = 1
	}
	return &Cache{
		store:    store,
		fetcher:  fetcher,
		config:   config,
		mem:      gocache.New(config.TTL, config.TTL*2),
		inflight: make(map[string]*inflightFetch),
	}
}

func blobKey(category string) string { return "catalog:" + category }

// Get returns the catalog for category, fetching from the service only
// when no fresh cached entry exists. On fetch failure a previous (possibly
// stale) entry is returned without error; with no previous entry the fetch
// error surfaces and nothing is written.
func (c *Cache) Get(ctx context.Context, category string) (*Entry, error) {
	if cached, found := c.mem.Get(category); found {
		if entry, ok := cached.(*Entry); ok && c.fresh(entry) {
			return entry, nil
		}
	}

	if entry := c.loadPersisted(category); entry != nil && c.fresh(entry) {
		c.mem.Set(category, entry, gocache.DefaultExpiration)
		return entry, nil
	}

	return c.fetchShared(ctx, category)
}

// fresh reports whether the entry is inside its TTL and carries the
// configured schema version.
func (c *Cache) fresh(entry *Entry) bool {
	if entry.SchemaVersion != c.config.SchemaVersion {
		return false
	}
	return time.Since(entry.FetchedAt) < c.config.TTL
}

// loadPersisted reads the persisted entry for category, degrading an
// unparsable blob to a cache miss.
func (c *Cache) loadPersisted(category string) *Entry {
	raw, err := c.store.Get(blobKey(category))
	if err != nil {
		return nil
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		logger.Warn("discarding unparsable catalog cache entry",
			"category", category, "error", err)
		_ = c.store.Delete(blobKey(category))
		return nil
	}
	return &entry
}

// fetchShared deduplicates concurrent fetches for the same category: the
// first caller performs the network fetch, later callers wait on the same
// pending result.
func (c *Cache) fetchShared(ctx context.Context, category string) (*Entry, error) {
	c.mu.Lock()
	if call, ok := c.inflight[category]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.entry, call.err
		case <-ctx.Done():
			// only an expired deadline is a timeout; a cancelled
			// waiter is not
			errCategory := errors.CategoryNetwork
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				errCategory = errors.CategoryTimeout
			}
			return nil, errors.Newf("catalog fetch abandoned: %w", ctx.Err()).
				Category(errCategory).
				Component("catalog").
				Context("category", category).
				Build()
		}
	}

	call := &inflightFetch{done: make(chan struct{})}
	c.inflight[category] = call
	c.mu.Unlock()

	call.entry, call.err = c.fetchAndStore(ctx, category)
	close(call.done)

	c.mu.Lock()
	delete(c.inflight, category)
	c.mu.Unlock()

	return call.entry, call.err
}

func (c *Cache) fetchAndStore(ctx context.Context, category string) (*Entry, error) {
	previous := c.loadPersisted(category)

	raw, err := c.fetcher.FetchCatalog(ctx, category)
	if err != nil {
		if previous != nil {
			logger.Warn("catalog fetch failed, serving previous entry",
				"category", category,
				"fetched_at", previous.FetchedAt,
				"error", err)
			c.mem.Set(category, previous, gocache.DefaultExpiration)
			return previous, nil
		}
		return nil, err
	}

	entry := c.normalize(category, raw)

	encoded, err := json.Marshal(entry)
	if err != nil {
		return nil, errors.Newf("failed to encode catalog entry: %w", err).
			Category(errors.CategoryDataIntegrity).
			Component("catalog").
			Context("category", category).
			Build()
	}
	// Single Put replaces the prior entry atomically; a failed write keeps
	// the previous blob intact.
	if err := c.store.Put(blobKey(category), encoded); err != nil {
		return nil, err
	}

	c.mem.Set(category, entry, gocache.DefaultExpiration)
	logger.Info("catalog refreshed", "category", category, "records", len(entry.Records))
	return entry, nil
}

// normalize resolves every fetched record through the identity resolver
// and builds the cache entry. The response's object keys are authoritative
// identity, so every record resolves.
func (c *Cache) normalize(category string, raw map[string]map[string]any) *Entry {
	records := make([]Species, 0, len(raw))
	for key, fields := range raw {
		rec := identity.FromMap(fields)
		id, ok := identity.Resolve(rec, key)
		if !ok {
			continue
		}
		records = append(records, Species{
			ID:             id,
			CommonName:     rec.CommonName,
			ScientificName: rec.ScientificName,
			Category:       category,
			ImagePath:      rec.ImagePath,
			Attrs:          rec.Attrs,
		})
	}
	// Record order is irrelevant to consumers; sort for determinism.
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	return &Entry{
		Category:      category,
		Records:       records,
		FetchedAt:     time.Now(),
		SchemaVersion: c.config.SchemaVersion,
	}
}

// Invalidate drops the cached entry for category, forcing the next Get to
// fetch.
func (c *Cache) Invalidate(category string) {
	c.mem.Delete(category)
	_ = c.store.Delete(blobKey(category))
}
