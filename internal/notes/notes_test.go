package notes

import (
	"testing"
	"time"

	"github.com/glowlabs/hangar/internal/model"
)

func mkRelease(t *testing.T, tag, body string) *model.Release {
	t.Helper()
	rel, ok := model.NewRelease(tag, time.Now(), body, nil)
	if !ok {
		t.Fatalf("bad tag %q", tag)
	}
	return rel
}

func TestMerge(t *testing.T) {
	a := mkRelease(t, "1.1.0", "X")
	b := mkRelease(t, "1.0.0", "Y")

	if got := Merge([]*model.Release{a, b}, false); got != "X\n\nY" {
		t.Fatalf("got %q, want %q", got, "X\n\nY")
	}

	want := "## 1.1.0\nX\n\n## 1.0.0\nY"
	if got := Merge([]*model.Release{a, b}, true); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMergeEmptyInput(t *testing.T) {
	if got := Merge(nil, true); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestMergeSkipsEmptyNotes(t *testing.T) {
	a := mkRelease(t, "1.1.0", "X")
	b := mkRelease(t, "1.0.0", "  \n")

	if got := Merge([]*model.Release{a, b}, false); got != "X" {
		t.Fatalf("got %q, want %q", got, "X")
	}

	// With headers every release keeps a block, even without body text.
	want := "## 1.1.0\nX\n\n## 1.0.0"
	if got := Merge([]*model.Release{a, b}, true); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
