// Package feed implements the line-oriented RELEASES manifest consumed by
// the Windows update client: one entry per line, "HASH FILENAME SIZE". The
// encoder reproduces the exact field order and separators, since the client
// parses this format byte-for-byte.
package feed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/glowlabs/hangar/internal/model"
)

// Entry is one package line of the manifest.
type Entry struct {
	SHA      string
	Filename string
	Size     int64
}

// Decode parses a manifest document. Blank lines are ignored; any malformed
// line fails the whole document, because a truncated manifest would corrupt
// the client's update check.
func Decode(data []byte) ([]Entry, error) {
	var entries []Entry
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: line %d: expected 3 fields, got %d", model.ErrMalformedFeed, i+1, len(fields))
		}
		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad size %q", model.ErrMalformedFeed, i+1, fields[2])
		}
		entries = append(entries, Entry{
			SHA:      fields[0],
			Filename: fields[1],
			Size:     size,
		})
	}
	return entries, nil
}

// Encode regenerates the manifest document from entries. Round-trips with
// Decode for unchanged entries.
func Encode(entries []Entry) []byte {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.SHA)
		b.WriteByte(' ')
		b.WriteString(e.Filename)
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(e.Size, 10))
	}
	return []byte(b.String())
}

// Rewrite points each entry's filename at this server's download endpoint,
// preserving hash and size verbatim, so clients fetch packages through the
// cache instead of the upstream store.
func Rewrite(entries []Entry, baseURL, tag string) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e
		out[i].Filename = fmt.Sprintf("%s/download/%s/%s", strings.TrimSuffix(baseURL, "/"), tag, e.Filename)
	}
	return out
}
