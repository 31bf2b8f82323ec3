package backend

import (
	"context"
	"io"

	"github.com/glowlabs/hangar/internal/model"
)

// Backend is the remote store of published releases. The core never inspects
// which implementation it is talking to.
type Backend interface {
	// ListReleases fetches the full release list, newest data included,
	// already filtered to releases with parseable semver tags.
	ListReleases(ctx context.Context) ([]*model.Release, error)

	// FetchAsset opens a stream of the asset's bytes. The returned length is
	// the expected content length, -1 if unknown.
	FetchAsset(ctx context.Context, asset *model.Asset) (io.ReadCloser, int64, error)
}
