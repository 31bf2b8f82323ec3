// Package cache is the disk-backed asset byte cache. Bytes live as one file
// per asset id under the cache directory; size and access metadata live in
// the SQLite store so LRU accounting survives restarts.
package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/glowlabs/hangar/internal/backend"
	"github.com/glowlabs/hangar/internal/model"
	"github.com/glowlabs/hangar/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache serves asset bytes from disk, fetching from the backend on miss.
// Concurrent misses for the same asset coalesce into one upstream fetch.
type Cache struct {
	dir     string
	maxSize int64
	maxAge  time.Duration
	backend backend.Backend
	meta    *store.SQLiteStore
	logger  *zap.Logger

	group singleflight.Group

	// mu serializes insertion accounting and eviction. Never held across a
	// backend fetch or a client copy.
	mu sync.Mutex
}

// New creates a Cache over dir with the given byte capacity and entry max
// age. The metadata store must belong to the same directory.
func New(dir string, maxSize int64, maxAge time.Duration, b backend.Backend, meta *store.SQLiteStore, logger *zap.Logger) *Cache {
	return &Cache{
		dir:     dir,
		maxSize: maxSize,
		maxAge:  maxAge,
		backend: b,
		meta:    meta,
		logger:  logger,
	}
}

// Get returns a stream of the asset's bytes and their length. Served from
// disk on hit; on miss (or stale entry) exactly one backend fetch populates
// the entry and every concurrent caller shares its outcome. Fetch failures
// are not cached, and assets larger than the capacity stream from a shared
// temp file instead of entering the cache.
func (c *Cache) Get(ctx context.Context, asset *model.Asset) (io.ReadCloser, int64, error) {
	key := strconv.FormatInt(asset.ID, 10)

	// An attempt can lose its file between the shared fetch and our open
	// (eviction, or a spill already reaped by its other waiters); one more
	// round refetches.
	for attempt := 0; attempt < 2; attempt++ {
		if r, size, ok := c.hit(asset.ID); ok {
			return r, size, nil
		}

		v, err, _ := c.group.Do(key, func() (interface{}, error) {
			if _, _, ok := c.hit(asset.ID); ok {
				return nil, nil
			}
			// The fetch deliberately survives client disconnects so the entry is
			// still populated for other waiters and future requests.
			return c.populate(context.WithoutCancel(ctx), asset)
		})
		if err != nil {
			return nil, 0, err
		}

		if sp, ok := v.(*spillFile); ok && sp != nil {
			f, err := sp.open()
			if err != nil {
				continue
			}
			info, err := f.Stat()
			if err != nil {
				f.Close()
				sp.release()
				return nil, 0, err
			}
			return &spillReader{File: f, spill: sp}, info.Size(), nil
		}

		f, err := os.Open(c.path(asset.ID))
		if err != nil {
			continue
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, err
		}
		if err := c.meta.Touch(asset.ID); err != nil {
			c.logger.Warn("failed to touch cache entry", zap.Int64("asset", asset.ID), zap.Error(err))
		}
		return f, info.Size(), nil
	}
	return nil, 0, fmt.Errorf("%w: cached asset %d vanished", model.ErrUpstream, asset.ID)
}

// hit opens the asset's file if a fresh metadata entry exists. An entry older
// than maxAge is treated as absent and will be refetched.
func (c *Cache) hit(assetID int64) (io.ReadCloser, int64, bool) {
	entry, err := c.meta.Get(assetID)
	if err != nil || entry == nil {
		return nil, 0, false
	}
	if time.Since(entry.CreatedAt) > c.maxAge {
		return nil, 0, false
	}
	f, err := os.Open(c.path(assetID))
	if err != nil {
		return nil, 0, false
	}
	if err := c.meta.Touch(assetID); err != nil {
		c.logger.Warn("failed to touch cache entry", zap.Int64("asset", assetID), zap.Error(err))
	}
	return f, entry.Size, true
}

// populate fetches the asset from the backend into a temp file, renames it
// into place, records metadata, and evicts until capacity holds. An asset
// larger than the whole capacity is never recorded: the temp file is returned
// as a spill shared by the waiters and unlinked once they are done.
func (c *Cache) populate(ctx context.Context, asset *model.Asset) (*spillFile, error) {
	body, _, err := c.backend.FetchAsset(ctx, asset)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(c.dir, fmt.Sprintf(".%d-*", asset.ID))
	if err != nil {
		return nil, err
	}
	keep := false
	defer func() {
		if !keep {
			os.Remove(tmp.Name())
		}
	}()

	written, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: fetching asset %d: %v", model.ErrUpstream, asset.ID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	if written > c.maxSize {
		c.logger.Warn("asset exceeds cache capacity, serving uncached",
			zap.Int64("asset", asset.ID),
			zap.String("filename", asset.Filename),
			zap.Int64("bytes", written),
			zap.Int64("capacity", c.maxSize),
		)
		keep = true
		return &spillFile{name: tmp.Name()}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.evictFor(asset.ID, written); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), c.path(asset.ID)); err != nil {
		return nil, err
	}
	keep = true
	if err := c.meta.Put(asset.ID, written); err != nil {
		return nil, err
	}

	c.logger.Info("asset cached",
		zap.Int64("asset", asset.ID),
		zap.String("filename", asset.Filename),
		zap.Int64("bytes", written),
	)
	return nil, nil
}

// evictFor removes least-recently-used entries until incoming bytes fit under
// the capacity. Unlinking does not disturb readers already holding an open
// file handle.
func (c *Cache) evictFor(incomingID, incomingSize int64) error {
	total, err := c.meta.TotalSize()
	if err != nil {
		return err
	}
	if total+incomingSize <= c.maxSize {
		return nil
	}

	entries, err := c.meta.List()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if total+incomingSize <= c.maxSize {
			break
		}
		if entry.AssetID == incomingID {
			continue
		}
		if err := os.Remove(c.path(entry.AssetID)); err != nil && !os.IsNotExist(err) {
			return err
		}
		if err := c.meta.Delete(entry.AssetID); err != nil {
			return err
		}
		total -= entry.Size
		c.logger.Info("cache entry evicted",
			zap.Int64("asset", entry.AssetID),
			zap.Int64("bytes", entry.Size),
		)
	}
	return nil
}

func (c *Cache) path(assetID int64) string {
	return filepath.Join(c.dir, strconv.FormatInt(assetID, 10))
}

// spillFile is a fetched asset too large to ever fit in the cache. Every
// waiter of the shared fetch opens it once; the file is unlinked when the
// last of them closes.
type spillFile struct {
	name string

	mu   sync.Mutex
	refs int
	gone bool
}

func (s *spillFile) open() (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return nil, os.ErrNotExist
	}
	f, err := os.Open(s.name)
	if err != nil {
		return nil, err
	}
	s.refs++
	return f, nil
}

func (s *spillFile) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs--
	if s.refs <= 0 && !s.gone {
		s.gone = true
		os.Remove(s.name)
	}
}

// spillReader returns the spill reference when the client finishes reading.
type spillReader struct {
	*os.File
	spill *spillFile
}

func (r *spillReader) Close() error {
	err := r.File.Close()
	r.spill.release()
	return err
}
