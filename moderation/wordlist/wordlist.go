// Package wordlist maintains the in-memory cache of forbidden terms.
//
// The cache is a single immutable Snapshot behind an atomic pointer: reads
// never block, and a reload is a wholesale replace (never an incremental
// merge), so in-flight classifications see either the entire old list or the
// entire new one.
package wordlist

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/vigilbot/vigil/store"
)

// Entry is one forbidden term, with a pre-lowered form for matching.
// Immutable for the lifetime of its snapshot.
type Entry struct {
	ID      int64
	Term    string
	Lowered string
}

// Snapshot is an immutable point-in-time view of the keyword list.
type Snapshot struct {
	Generation uint64
	Entries    []Entry
}

// KeywordLister is the slice of the persistent store the cache needs.
type KeywordLister interface {
	ListKeywords(ctx context.Context) ([]store.KeywordEntry, error)
}

type Cache struct {
	snap atomic.Pointer[Snapshot]
	gen  atomic.Uint64
}

func NewCache() *Cache {
	c := &Cache{}
	c.snap.Store(&Snapshot{})
	return c
}

// Current returns the latest committed snapshot. Never blocks, never nil.
func (c *Cache) Current() *Snapshot {
	return c.snap.Load()
}

// Load fetches the full keyword list and commits it as a new snapshot. On
// failure the previous snapshot remains active: a failed reload must not
// blank the cache.
func (c *Cache) Load(ctx context.Context, src KeywordLister) (*Snapshot, error) {
	entries, err := src.ListKeywords(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching keyword list: %w", err)
	}
	snap := &Snapshot{
		Generation: c.gen.Add(1),
		Entries:    make([]Entry, 0, len(entries)),
	}
	for _, e := range entries {
		term := strings.TrimSpace(e.Term)
		if term == "" {
			continue
		}
		snap.Entries = append(snap.Entries, Entry{
			ID:      e.ID,
			Term:    term,
			Lowered: strings.ToLower(term),
		})
	}
	c.snap.Store(snap)
	return snap, nil
}
