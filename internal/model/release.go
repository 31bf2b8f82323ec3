package model

import (
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// ChannelStable is the channel assigned to releases without a pre-release
// qualifier in their tag.
const ChannelStable = "stable"

// ChannelAny matches every channel in a resolution query.
const ChannelAny = "*"

// Release is one published version of the application, with its notes and
// platform assets. Releases are immutable once built; the index swaps whole
// snapshots instead of mutating them.
type Release struct {
	Tag         string    `json:"tag"`
	Channel     string    `json:"channel"`
	Notes       string    `json:"notes"`
	PublishedAt time.Time `json:"published_at"`
	Assets      []*Asset  `json:"assets"`

	version *semver.Version
}

// Asset is one downloadable file attached to a release. ID is assigned by the
// backend and stable across index refreshes, so cached bytes keyed by it
// survive snapshot swaps. DownloadURL is the backend content locator and is
// opaque to everything but the backend itself.
type Asset struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`

	DownloadURL string `json:"-"`
}

// NewRelease builds a Release from a tag, inferring the channel and parsing
// the version. Returns false if the tag is not a valid semantic version.
func NewRelease(tag string, publishedAt time.Time, notes string, assets []*Asset) (*Release, bool) {
	v, err := semver.NewVersion(strings.TrimPrefix(tag, "v"))
	if err != nil {
		return nil, false
	}
	return &Release{
		Tag:         tag,
		Channel:     channelOf(v),
		Notes:       notes,
		PublishedAt: publishedAt,
		Assets:      assets,
		version:     v,
	}, true
}

// Version returns the parsed semantic version of the release tag.
func (r *Release) Version() *semver.Version {
	if r.version == nil {
		r.version, _ = semver.NewVersion(strings.TrimPrefix(r.Tag, "v"))
	}
	return r.version
}

// ChannelOfTag derives the channel from a version tag. Returns false when
// the tag is not a valid semantic version.
func ChannelOfTag(tag string) (string, bool) {
	v, err := semver.NewVersion(strings.TrimPrefix(tag, "v"))
	if err != nil {
		return "", false
	}
	return channelOf(v), true
}

// channelOf derives the release channel from the version's pre-release
// segment: "1.2.0-beta.1" is on "beta", "1.2.0" is on "stable".
func channelOf(v *semver.Version) string {
	pre := v.Prerelease()
	if pre == "" {
		return ChannelStable
	}
	if i := strings.IndexByte(pre, '.'); i >= 0 {
		pre = pre[:i]
	}
	return pre
}

// SortReleases orders releases newest first: semantic version descending,
// publish time descending as tiebreak.
func SortReleases(releases []*Release) {
	sort.SliceStable(releases, func(i, j int) bool {
		switch releases[i].Version().Compare(releases[j].Version()) {
		case 1:
			return true
		case -1:
			return false
		}
		return releases[i].PublishedAt.After(releases[j].PublishedAt)
	})
}
