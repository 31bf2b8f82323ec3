// Package resolver selects the release a client should receive from the
// current index snapshot, applying channel, platform and tag filters.
package resolver

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/glowlabs/hangar/internal/model"
	"github.com/glowlabs/hangar/internal/platform"
)

const (
	// TagLatest selects the most recent release passing the other filters.
	TagLatest = "latest"
	// TagAll is an accepted alias for TagLatest.
	TagAll = "all"
)

// Query describes one resolution request. Channel is an exact channel name or
// model.ChannelAny; Platform is empty or a platform identifier; Tag is an
// exact tag, TagLatest (or its alias TagAll), or a semver range expression
// such as ">=1.2.0".
type Query struct {
	Channel  string
	Platform string
	Tag      string
}

// Filter returns the releases satisfying the query, ordered newest first.
// The input must already be in index order (it is never re-sorted here).
func Filter(releases []*model.Release, q Query) ([]*model.Release, error) {
	constraint, err := tagConstraint(q.Tag)
	if err != nil {
		return nil, err
	}

	var out []*model.Release
	for _, rel := range releases {
		if !channelMatches(q.Channel, rel.Channel) {
			continue
		}
		if !tagMatches(rel, q.Tag, constraint) {
			continue
		}
		if q.Platform != "" {
			if _, ok := platform.Resolve(rel, q.Platform, ""); !ok {
				continue
			}
		}
		out = append(out, rel)
	}
	return out, nil
}

// Resolve returns the first release matching the query, or ErrNotFound.
func Resolve(releases []*model.Release, q Query) (*model.Release, error) {
	matched, err := Filter(releases, q)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: no release for channel %q tag %q", model.ErrNotFound, q.Channel, q.Tag)
	}
	return matched[0], nil
}

// ResolveForDownload resolves with the download fallback: a concrete channel
// asking for "latest" that finds nothing retries once across all channels, so
// a client defaulting to stable still gets something before the first stable
// release exists. The second failure is surfaced as-is.
func ResolveForDownload(releases []*model.Release, q Query) (*model.Release, error) {
	rel, err := Resolve(releases, q)
	if err == nil {
		return rel, nil
	}
	if model.IsNotFound(err) && q.Channel != model.ChannelAny && (q.Tag == TagLatest || q.Tag == TagAll) {
		fallback := q
		fallback.Channel = model.ChannelAny
		return Resolve(releases, fallback)
	}
	return nil, err
}

func channelMatches(want, got string) bool {
	return want == model.ChannelAny || want == got
}

// tagConstraint parses a semver range expression out of the tag filter.
// Exact tags and TagLatest yield no constraint.
func tagConstraint(tag string) (*semver.Constraints, error) {
	if tag == "" || tag == TagLatest || tag == TagAll {
		return nil, nil
	}
	if !strings.ContainsAny(tag, "><=~^*") {
		return nil, nil
	}
	c, err := semver.NewConstraint(tag)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid version range %q", model.ErrBadRequest, tag)
	}
	return c, nil
}

func tagMatches(rel *model.Release, tag string, constraint *semver.Constraints) bool {
	switch {
	case tag == "" || tag == TagLatest || tag == TagAll:
		return true
	case constraint != nil:
		return constraint.Check(rel.Version())
	default:
		return rel.Tag == tag || strings.TrimPrefix(rel.Tag, "v") == strings.TrimPrefix(tag, "v")
	}
}
