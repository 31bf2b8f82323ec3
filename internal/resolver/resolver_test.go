package resolver

import (
	"errors"
	"testing"
	"time"

	"github.com/glowlabs/hangar/internal/model"
)

func mkRelease(t *testing.T, tag string, at time.Time, filenames ...string) *model.Release {
	t.Helper()
	assets := make([]*model.Asset, len(filenames))
	for i, name := range filenames {
		assets[i] = &model.Asset{ID: int64(len(tag)*100 + i), Filename: name, Size: 10}
	}
	rel, ok := model.NewRelease(tag, at, "notes for "+tag, assets)
	if !ok {
		t.Fatalf("bad tag %q", tag)
	}
	return rel
}

func testIndex(t *testing.T) []*model.Release {
	t.Helper()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	releases := []*model.Release{
		mkRelease(t, "1.0.0", base.Add(time.Hour), "App-1.0.0.dmg", "App-Setup-1.0.0.exe"),
		mkRelease(t, "1.1.0-beta.1", base.Add(2*time.Hour), "App-1.1.0-beta.1-mac.zip"),
		mkRelease(t, "0.9.0", base, "App-0.9.0.dmg"),
	}
	model.SortReleases(releases)
	return releases
}

func TestFilterOrdering(t *testing.T) {
	matched, err := Filter(testIndex(t), Query{Channel: model.ChannelAny, Tag: TagLatest})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"1.1.0-beta.1", "1.0.0", "0.9.0"}
	if len(matched) != len(want) {
		t.Fatalf("got %d releases, want %d", len(matched), len(want))
	}
	for i, tag := range want {
		if matched[i].Tag != tag {
			t.Fatalf("position %d: got %s, want %s", i, matched[i].Tag, tag)
		}
	}
}

func TestResolveByChannel(t *testing.T) {
	releases := testIndex(t)

	rel, err := Resolve(releases, Query{Channel: model.ChannelAny, Tag: TagLatest})
	if err != nil {
		t.Fatal(err)
	}
	if rel.Tag != "1.1.0-beta.1" {
		t.Fatalf("wildcard channel: got %s, want 1.1.0-beta.1", rel.Tag)
	}

	rel, err = Resolve(releases, Query{Channel: model.ChannelStable, Tag: TagLatest})
	if err != nil {
		t.Fatal(err)
	}
	if rel.Tag != "1.0.0" {
		t.Fatalf("stable channel: got %s, want 1.0.0", rel.Tag)
	}
}

func TestResolveByAllAlias(t *testing.T) {
	releases := testIndex(t)

	// "all" behaves exactly like "latest".
	rel, err := Resolve(releases, Query{Channel: model.ChannelAny, Tag: TagAll})
	if err != nil {
		t.Fatal(err)
	}
	if rel.Tag != "1.1.0-beta.1" {
		t.Fatalf("tag all: got %s, want 1.1.0-beta.1", rel.Tag)
	}

	matched, err := Filter(releases, Query{Channel: model.ChannelAny, Tag: TagAll})
	if err != nil {
		t.Fatal(err)
	}
	if len(matched) != 3 {
		t.Fatalf("tag all matched %d releases, want 3", len(matched))
	}
}

func TestResolveByExactTag(t *testing.T) {
	rel, err := Resolve(testIndex(t), Query{Channel: model.ChannelAny, Tag: "0.9.0"})
	if err != nil {
		t.Fatal(err)
	}
	if rel.Tag != "0.9.0" {
		t.Fatalf("got %s, want 0.9.0", rel.Tag)
	}
}

func TestResolveByRange(t *testing.T) {
	rel, err := Resolve(testIndex(t), Query{Channel: model.ChannelStable, Tag: ">=0.9.0"})
	if err != nil {
		t.Fatal(err)
	}
	if rel.Tag != "1.0.0" {
		t.Fatalf("got %s, want 1.0.0", rel.Tag)
	}

	if _, err := Resolve(testIndex(t), Query{Channel: model.ChannelAny, Tag: ">=2.0.0"}); !model.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveBadRange(t *testing.T) {
	_, err := Filter(testIndex(t), Query{Channel: model.ChannelAny, Tag: ">=not.a.version"})
	if !errors.Is(err, model.ErrBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestPlatformFilter(t *testing.T) {
	// 1.1.0-beta.1 only ships a mac zip, so a windows query must skip it.
	rel, err := Resolve(testIndex(t), Query{Channel: model.ChannelAny, Platform: "windows", Tag: TagLatest})
	if err != nil {
		t.Fatal(err)
	}
	if rel.Tag != "1.0.0" {
		t.Fatalf("got %s, want 1.0.0", rel.Tag)
	}
}

func TestDownloadFallbackToAnyChannel(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	releases := []*model.Release{
		mkRelease(t, "1.0.0-beta.2", base.Add(time.Hour), "App-mac.zip"),
		mkRelease(t, "1.0.0-beta.1", base, "App-mac.zip"),
	}
	model.SortReleases(releases)

	// No stable release exists; "stable latest" must still find the newest
	// release on any channel rather than reporting not found.
	rel, err := ResolveForDownload(releases, Query{Channel: model.ChannelStable, Tag: TagLatest})
	if err != nil {
		t.Fatal(err)
	}
	if rel.Tag != "1.0.0-beta.2" {
		t.Fatalf("got %s, want 1.0.0-beta.2", rel.Tag)
	}
}

func TestDownloadFallbackOnlyForLatest(t *testing.T) {
	releases := testIndex(t)

	// A concrete tag on the wrong channel does not fall back.
	if _, err := ResolveForDownload(releases, Query{Channel: "beta", Tag: "1.0.0"}); !model.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveEmptyIndex(t *testing.T) {
	if _, err := ResolveForDownload(nil, Query{Channel: model.ChannelStable, Tag: TagLatest}); !model.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
