package model

import (
	"testing"
	"time"
)

func TestChannelOfTag(t *testing.T) {
	tests := []struct {
		tag    string
		want   string
		wantOK bool
	}{
		{"1.0.0", "stable", true},
		{"v1.0.0", "stable", true},
		{"1.2.0-beta.1", "beta", true},
		{"2.3.1-beta.0", "beta", true},
		{"1.2.0-alpha", "alpha", true},
		{"1.2.0-rc.2", "rc", true},
		{"v0.9.0+build.5", "stable", true},
		{"not-a-version", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, ok := ChannelOfTag(tt.tag)
			if ok != tt.wantOK {
				t.Fatalf("ChannelOfTag(%q) ok = %v, want %v", tt.tag, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Fatalf("ChannelOfTag(%q) = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

func TestNewReleaseRejectsBadTags(t *testing.T) {
	if _, ok := NewRelease("nightly-build", time.Now(), "", nil); ok {
		t.Fatal("expected NewRelease to reject a non-semver tag")
	}
}

func TestSortReleases(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(tag string, at time.Time) *Release {
		rel, ok := NewRelease(tag, at, "", nil)
		if !ok {
			t.Fatalf("bad tag %q", tag)
		}
		return rel
	}

	releases := []*Release{
		mk("0.9.0", base),
		mk("1.1.0-beta.1", base.Add(2*time.Hour)),
		mk("1.0.0", base.Add(time.Hour)),
		mk("1.1.0", base.Add(3*time.Hour)),
	}
	SortReleases(releases)

	want := []string{"1.1.0", "1.1.0-beta.1", "1.0.0", "0.9.0"}
	for i, tag := range want {
		if releases[i].Tag != tag {
			t.Fatalf("position %d: got %s, want %s", i, releases[i].Tag, tag)
		}
	}
}

func TestSortReleasesPublishTimeTiebreak(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older, _ := NewRelease("1.0.0", base, "", nil)
	newer, _ := NewRelease("v1.0.0", base.Add(time.Hour), "", nil)

	releases := []*Release{older, newer}
	SortReleases(releases)

	if releases[0] != newer {
		t.Fatal("expected the later-published release first on equal versions")
	}
}
