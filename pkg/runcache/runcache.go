// Package runcache memoizes downloads for the lifetime of a single run.
//
// A run builds many applications in parallel and several of them usually
// share resources: the same patch tool, the same patch bundle, sometimes
// the same application package. A [Table] makes sure each distinct
// (source, version, market) key is fetched from the network at most once
// per run, no matter how many workers ask for it concurrently.
//
// Entries are write-once. There is no invalidation; a new run starts with
// empty tables.
//
// # Locking
//
// Reads are lock-free. On a miss the caller takes the table lock, checks
// again, then releases the lock for the fetch itself so that unrelated keys
// are never serialized behind a slow download. After the fetch the lock is
// taken once more and the key re-checked before the insert. Concurrent
// requests for the same key share one in-flight fetch.
//
// # Cancellation
//
// The shared fetch is not tied to the context of the caller that started
// it: a caller that gives up stops waiting, but the fetch runs on for the
// other callers and its result is stored. Values of the context, such as
// trace data, are kept.
package runcache

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/observability"
)

// Key identifies a memoized download.
type Key struct {
	Source  string // source identity, usually the configured URL
	Version string // pinned version or apk.Latest
	Market  string // package identifier for app downloads, asset filter for shared resources
}

// String returns a stable string form of k.
func (k Key) String() string {
	return k.Source + "|" + k.Version + "|" + k.Market
}

// AppKey builds the key for an application package download.
func AppKey(source, version, packageName string) Key {
	if version == "" {
		version = apk.Latest
	}
	return Key{Source: source, Version: version, Market: packageName}
}

// ResourceKey builds the key for a shared resource (patch tool or bundle).
// filter selects the release asset, so one release serves distinct files.
func ResourceKey(source, version, filter string) Key {
	if version == "" {
		version = apk.Latest
	}
	return Key{Source: source, Version: version, Market: filter}
}

// Entry is the memoized result of a download.
type Entry struct {
	FileName string
	URL      string // resolved direct URL
	Version  string // version discovered by the source, if any
}

// FetchFunc performs the network fetch for a missing key.
type FetchFunc func(ctx context.Context) (Entry, error)

// Table is a concurrency-safe, write-once memoization table.
type Table struct {
	name    string
	entries sync.Map // Key -> Entry
	mu      sync.Mutex
	group   singleflight.Group
	size    atomic.Int64
	fetches atomic.Int64
}

// New returns an empty table. name labels cache hook events.
func New(name string) *Table {
	return &Table{name: name}
}

// NewDownloads returns the table for application package downloads.
func NewDownloads() *Table { return New("download") }

// NewResources returns the table for patch tools and patch bundles.
func NewResources() *Table { return New("resource") }

// Name returns the table label.
func (t *Table) Name() string { return t.name }

// Len returns the number of stored entries.
func (t *Table) Len() int { return int(t.size.Load()) }

// Fetches returns how many fetches the table has started.
func (t *Table) Fetches() int { return int(t.fetches.Load()) }

// Lookup returns the entry for key without locking.
func (t *Table) Lookup(key Key) (Entry, bool) {
	v, ok := t.entries.Load(key)
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

// Get returns the entry for key, calling fetch if it is not stored yet.
// The bool reports whether the value came from the table rather than from
// a fetch performed by this caller. A failed fetch stores nothing, so a
// later call retries it.
func (t *Table) Get(ctx context.Context, key Key, fetch FetchFunc) (Entry, bool, error) {
	hooks := observability.Cache()

	if e, ok := t.Lookup(key); ok {
		hooks.OnCacheHit(ctx, t.name)
		return e, true, nil
	}

	var fetched bool
	ch := t.group.DoChan(key.String(), func() (any, error) {
		t.mu.Lock()
		if e, ok := t.Lookup(key); ok {
			t.mu.Unlock()
			return e, nil
		}
		t.mu.Unlock()

		fetched = true
		t.fetches.Add(1)
		hooks.OnCacheMiss(ctx, t.name)
		e, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return Entry{}, err
		}

		t.mu.Lock()
		defer t.mu.Unlock()
		if existing, ok := t.Lookup(key); ok {
			return existing, nil
		}
		t.entries.Store(key, e)
		hooks.OnCacheSet(ctx, t.name, int(t.size.Add(1)))
		return e, nil
	})

	select {
	case <-ctx.Done():
		return Entry{}, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Entry{}, false, res.Err
		}
		if !fetched {
			hooks.OnCacheHit(ctx, t.name)
		}
		return res.Val.(Entry), !fetched, nil
	}
}
