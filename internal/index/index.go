package index

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/glowlabs/hangar/internal/backend"
	"github.com/glowlabs/hangar/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// snapshot is one immutable view of the release list, sorted newest first.
type snapshot struct {
	releases  []*model.Release
	fetchedAt time.Time
}

// Index holds the current set of releases fetched from the backend. Readers
// always see a complete snapshot; Refresh swaps the whole thing atomically.
type Index struct {
	backend backend.Backend
	ttl     time.Duration
	logger  *zap.Logger

	current    atomic.Pointer[snapshot]
	group      singleflight.Group
	stale      atomic.Bool
	refreshing atomic.Bool
}

// New creates an empty Index. Call Refresh to populate it.
func New(b backend.Backend, ttl time.Duration, logger *zap.Logger) *Index {
	idx := &Index{backend: b, ttl: ttl, logger: logger}
	idx.current.Store(&snapshot{})
	return idx
}

// Refresh fetches the release list and atomically replaces the snapshot.
// Concurrent callers collapse into one backend call and share its outcome.
// On failure the previous snapshot is retained.
func (idx *Index) Refresh(ctx context.Context) error {
	_, err, _ := idx.group.Do("refresh", func() (interface{}, error) {
		releases, err := idx.backend.ListReleases(ctx)
		if err != nil {
			return nil, err
		}
		model.SortReleases(releases)
		idx.current.Store(&snapshot{releases: releases, fetchedAt: time.Now()})
		idx.stale.Store(false)
		idx.logger.Info("release index refreshed", zap.Int("releases", len(releases)))
		return nil, nil
	})
	return err
}

// Releases returns the current snapshot. When the snapshot is older than the
// TTL (or was invalidated) a background refresh is kicked off, but the caller
// is served the snapshot it found without waiting.
func (idx *Index) Releases() []*model.Release {
	snap := idx.current.Load()
	if idx.stale.Load() || time.Since(snap.fetchedAt) > idx.ttl {
		// One background refresh at a time; a request burst against a stale
		// snapshot must not pile up goroutines behind a slow upstream.
		if idx.refreshing.CompareAndSwap(false, true) {
			go func() {
				defer idx.refreshing.Store(false)
				if err := idx.Refresh(context.Background()); err != nil {
					idx.logger.Error("background index refresh failed", zap.Error(err))
				}
			}()
		}
	}
	return snap.releases
}

// Invalidate marks the snapshot stale so the next read triggers a refresh.
// Used by the webhook path on new-release notifications.
func (idx *Index) Invalidate() {
	idx.stale.Store(true)
}

// FetchedAt reports when the current snapshot was taken. Zero for an index
// that has never successfully refreshed.
func (idx *Index) FetchedAt() time.Time {
	return idx.current.Load().fetchedAt
}
