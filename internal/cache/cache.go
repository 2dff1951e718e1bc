// Package cache shields the rate-limited remote store from read volume.
// Reads are routed to a TTL tier chosen by the caller; anything about to
// drive a write goes through ReadFresh, which bypasses caching entirely.
// Every successful write clears the whole cache: coarse, but partial
// invalidation risks missing a dependency between tables.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"scheletro/backend/internal/table"
)

// Tier selects how stale a cached read may be. Callers pick per read based
// on freshness sensitivity.
type Tier int

const (
	TierShort Tier = iota
	TierMedium
	TierLong
)

type TTLs struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{Short: 30 * time.Second, Medium: 5 * time.Minute, Long: 30 * time.Minute}
}

func (t TTLs) For(tier Tier) time.Duration {
	switch tier {
	case TierMedium:
		return t.Medium
	case TierLong:
		return t.Long
	default:
		return t.Short
	}
}

// Backend stores cached table contents. Implementations must treat a miss
// as (nil, false, nil), not an error.
type Backend interface {
	Get(ctx context.Context, name string) ([][]string, bool, error)
	Set(ctx context.Context, name string, rows [][]string, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// Snapshot is the result of a tiered read. Degraded is set when the store
// rate-limited us and the read fell back to an empty row set; callers must
// not interpret a degraded empty snapshot as "no rows exist".
type Snapshot struct {
	Rows     [][]string
	Degraded bool
}

type TableCache struct {
	client  table.Client
	backend Backend
	ttls    TTLs
	log     *logrus.Logger
}

func New(client table.Client, backend Backend, ttls TTLs, log *logrus.Logger) *TableCache {
	return &TableCache{client: client, backend: backend, ttls: ttls, log: log}
}

// Read serves a table through the tier's TTL. On a rate-limit condition the
// read degrades to an empty snapshot with a surfaced warning instead of
// failing; any other store error propagates.
func (c *TableCache) Read(ctx context.Context, name string, tier Tier) (Snapshot, error) {
	rows, ok, err := c.backend.Get(ctx, name)
	if err != nil {
		// A broken cache backend must not take reads down with it.
		c.log.WithFields(logrus.Fields{"component": "cache", "table": name}).
			Warnf("cache backend get failed, treating as miss: %v", err)
	} else if ok {
		return Snapshot{Rows: rows}, nil
	}

	rows, err = c.client.Read(ctx, name)
	if err != nil {
		if errors.Is(err, table.ErrRateLimited) {
			c.log.WithFields(logrus.Fields{"component": "cache", "table": name}).
				Warn("rate limited, serving empty snapshot")
			return Snapshot{Degraded: true}, nil
		}
		return Snapshot{}, err
	}

	if err := c.backend.Set(ctx, name, rows, c.ttls.For(tier)); err != nil {
		c.log.WithFields(logrus.Fields{"component": "cache", "table": name}).
			Warnf("cache backend set failed: %v", err)
	}
	return Snapshot{Rows: rows}, nil
}

// ReadFresh bypasses the cache entirely. It is the only read allowed before
// a write that depends on current state (stock validation, ID allocation),
// and it never degrades: a rate limit here is an error, because treating an
// empty fallback as current state would be destructive.
func (c *TableCache) ReadFresh(ctx context.Context, name string) ([][]string, error) {
	return c.client.Read(ctx, name)
}

// Overwrite writes through to the store and, on success, clears the whole
// cache.
func (c *TableCache) Overwrite(ctx context.Context, name string, rows [][]string) error {
	if err := c.client.Overwrite(ctx, name, rows); err != nil {
		return err
	}
	c.Invalidate(ctx)
	return nil
}

// Invalidate drops every cached table.
func (c *TableCache) Invalidate(ctx context.Context) {
	if err := c.backend.Clear(ctx); err != nil {
		c.log.WithField("component", "cache").Warnf("cache clear failed: %v", err)
	}
}

type memoryEntry struct {
	rows    [][]string
	expires time.Time
}

// MemoryBackend is the in-process default backend.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry)}
}

func (b *MemoryBackend) Get(_ context.Context, name string) ([][]string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entries[name]
	if !ok || time.Now().After(entry.expires) {
		delete(b.entries, name)
		return nil, false, nil
	}
	return copyRows(entry.rows), true, nil
}

func (b *MemoryBackend) Set(_ context.Context, name string, rows [][]string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[name] = memoryEntry{rows: copyRows(rows), expires: time.Now().Add(ttl)}
	return nil
}

func (b *MemoryBackend) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[string]memoryEntry)
	return nil
}

func copyRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}
