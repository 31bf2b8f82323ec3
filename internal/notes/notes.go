// Package notes merges release notes across an ordered set of releases.
package notes

import (
	"strings"

	"github.com/glowlabs/hangar/internal/model"
)

// Merge concatenates the notes of each release in the given order (callers
// supply newest-first), joined by a blank line. With includeTag, each block
// is preceded by a header line carrying the release tag. Pure; an empty
// input yields an empty string.
func Merge(releases []*model.Release, includeTag bool) string {
	blocks := make([]string, 0, len(releases))
	for _, rel := range releases {
		body := strings.TrimSpace(rel.Notes)
		if includeTag {
			if body == "" {
				blocks = append(blocks, "## "+rel.Tag)
			} else {
				blocks = append(blocks, "## "+rel.Tag+"\n"+body)
			}
			continue
		}
		if body == "" {
			continue
		}
		blocks = append(blocks, body)
	}
	return strings.Join(blocks, "\n\n")
}
