package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"leadmatch/internal/config"
	"leadmatch/internal/logging"
)

var ErrSourceUnavailable = errors.New("inventory source unavailable")

// CacheState is the freshness of the snapshot
type CacheState string

const (
	StateEmpty CacheState = "EMPTY"
	StateFresh CacheState = "FRESH"
	StateStale CacheState = "STALE"
)

// SupplierStats records what one refresh did for one supplier
type SupplierStats struct {
	File   string `json:"file,omitempty"`
	Before int    `json:"before"`
	After  int    `json:"after"`
	Err    string `json:"error,omitempty"`
}

// Snapshot is an immutable set of filtered supplier tables
type Snapshot struct {
	Tables      map[string]*Table        `json:"-"`
	Suppliers   []string                 `json:"suppliers"`
	RefreshedAt time.Time                `json:"refreshed_at"`
	Stats       map[string]SupplierStats `json:"stats"`
}

// Empty reports whether no supplier has any rows
func (s *Snapshot) Empty() bool {
	if s == nil {
		return true
	}
	for _, t := range s.Tables {
		if t.Len() > 0 {
			return false
		}
	}
	return true
}

// Status summarizes the cache for the inventory endpoint
type Status struct {
	State       CacheState               `json:"state"`
	RefreshedAt *time.Time               `json:"refreshed_at,omitempty"`
	TTL         string                   `json:"ttl"`
	Authorized  bool                     `json:"authorized"`
	Suppliers   []string                 `json:"suppliers"`
	Stats       map[string]SupplierStats `json:"stats,omitempty"`
}

// Cache holds the latest inventory snapshot and refreshes it from a Source
type Cache struct {
	source    Source
	suppliers []config.Supplier
	filter    *AvailabilityFilter
	ttl       time.Duration

	mu       sync.RWMutex
	snapshot *Snapshot
	group    singleflight.Group
	now      func() time.Time
}

// NewCache creates an empty cache
func NewCache(source Source, suppliers []config.Supplier, filter *AvailabilityFilter, ttl time.Duration) *Cache {
	return &Cache{
		source:    source,
		suppliers: suppliers,
		filter:    filter,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Snapshot returns the current snapshot, possibly nil
func (c *Cache) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// State reports EMPTY, FRESH or STALE
func (c *Cache) State() CacheState {
	snap := c.Snapshot()
	if snap == nil {
		return StateEmpty
	}
	if c.now().Sub(snap.RefreshedAt) < c.ttl {
		return StateFresh
	}
	return StateStale
}

// Status describes the cache without exposing table contents
func (c *Cache) Status() Status {
	st := Status{
		State:      c.State(),
		TTL:        c.ttl.String(),
		Authorized: c.source != nil && c.source.IsAuthorized(),
	}
	for _, s := range c.suppliers {
		st.Suppliers = append(st.Suppliers, s.Key)
	}
	if snap := c.Snapshot(); snap != nil {
		at := snap.RefreshedAt
		st.RefreshedAt = &at
		st.Stats = snap.Stats
	}
	return st
}

// Refresh reloads every supplier unless the snapshot is fresh and non-empty.
// Concurrent callers share one reload.
func (c *Cache) Refresh(ctx context.Context, force bool) error {
	if !force && c.State() == StateFresh && !c.Snapshot().Empty() {
		return nil
	}
	if c.source == nil || !c.source.IsAuthorized() {
		return ErrSourceUnavailable
	}

	_, err, shared := c.group.Do("refresh", func() (interface{}, error) {
		snap := c.load(ctx)
		c.mu.Lock()
		c.snapshot = snap
		c.mu.Unlock()
		return nil, nil
	})
	if shared {
		logging.Debugf("inventory refresh joined an in-flight reload")
	}
	return err
}

// load builds a new snapshot; a failing supplier gets an empty table
func (c *Cache) load(ctx context.Context) *Snapshot {
	started := c.now()
	snap := &Snapshot{
		Tables: make(map[string]*Table, len(c.suppliers)),
		Stats:  make(map[string]SupplierStats, len(c.suppliers)),
	}

	for _, s := range c.suppliers {
		snap.Suppliers = append(snap.Suppliers, s.Key)

		table, stats, err := c.loadSupplier(ctx, s)
		if err != nil {
			log.Printf("⚠️  Inventory refresh failed for %s: %v", s.Key, err)
			stats.Err = err.Error()
			table = &Table{}
		}
		snap.Tables[s.Key] = table
		snap.Stats[s.Key] = stats
	}

	snap.RefreshedAt = c.now()
	total := 0
	for _, t := range snap.Tables {
		total += t.Len()
	}
	log.Printf("✅ Inventory refreshed: %d suppliers, %d available units (%v)",
		len(snap.Suppliers), total, snap.RefreshedAt.Sub(started))
	return snap
}

func (c *Cache) loadSupplier(ctx context.Context, s config.Supplier) (*Table, SupplierStats, error) {
	var stats SupplierStats

	files, err := c.source.ListFiles(ctx, s, false)
	if err != nil {
		return nil, stats, err
	}
	file, ok := Latest(files)
	if !ok {
		return nil, stats, fmt.Errorf("no tabular files in folder %s", s.FolderID)
	}
	stats.File = file.Name

	data, err := c.source.FetchFile(ctx, file)
	if err != nil {
		return nil, stats, err
	}
	table, err := ParseTable(file.Format(), data)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to parse %s: %w", file.Name, err)
	}

	stats.Before = table.Len()
	filtered, removed := c.filter.Filter(table)
	stats.After = filtered.Len()
	logging.Debugf("%s: %s parsed, %d rows, %d hidden as unavailable", s.Key, file.Name, stats.Before, removed)
	return filtered, stats, nil
}

// Latest returns the most recently modified file with a supported format
func Latest(files []FileMeta) (FileMeta, bool) {
	var best FileMeta
	found := false
	for _, f := range files {
		if f.Format() == "" {
			continue
		}
		if !found || f.ModifiedTime.After(best.ModifiedTime) {
			best = f
			found = true
		}
	}
	return best, found
}
