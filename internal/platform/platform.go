// Package platform classifies release assets by target platform and picks
// the right asset for a client. Classification is filename-based: the rules
// live in explicit tables so the policy can be read and tested directly.
package platform

import (
	"strings"

	"github.com/glowlabs/hangar/internal/model"
)

// Platform identifiers. A bare family name ("osx", "windows", "linux") in a
// query matches every architecture of that family.
const (
	OSX       = "osx"
	OSXArm64  = "osx_arm64"
	Windows32 = "windows_32"
	Windows64 = "windows_64"
	Linux32   = "linux_32"
	Linux64   = "linux_64"
)

// aliases maps client-supplied platform names to canonical identifiers or
// family names.
var aliases = map[string]string{
	"darwin":  OSX,
	"mac":     OSX,
	"macos":   OSX,
	"osx":     OSX,
	"win":     "windows",
	"win32":   "windows",
	"windows": "windows",
	"win64":   Windows64,
	"linux":   "linux",
	"ubuntu":  "linux",
}

// familyMarkers drives OS detection from an asset filename. First family
// whose marker hits wins, so more specific markers sort first.
var familyMarkers = []struct {
	family  string
	substrs []string
	exts    []string
}{
	{"osx", []string{"darwin", "macos", "osx", "mac"}, []string{".dmg", ".pkg"}},
	{"windows", []string{"win"}, []string{".exe", ".msi", ".nupkg"}},
	{"linux", []string{"linux", "ubuntu"}, []string{".deb", ".rpm", ".appimage"}},
}

var arch64Markers = []string{"x86_64", "amd64", "x64", "arm64", "aarch64", "64"}
var arch32Markers = []string{"i386", "ia32", "i686", "x86", "32"}
var armMarkers = []string{"arm64", "aarch64"}

// extPreference is the fixed per-family download preference used when the
// client gives no file-type hint.
var extPreference = map[string][]string{
	"osx":     {".dmg", ".zip", ".pkg", ".tar.gz"},
	"windows": {".exe", ".msi", ".zip", ".nupkg"},
	"linux":   {".appimage", ".deb", ".rpm", ".tar.gz", ".zip"},
}

// Detect classifies an asset filename into a platform identifier. Returns ""
// for files that target no recognizable platform (checksums, sources, the
// RELEASES manifest).
func Detect(filename string) string {
	name := strings.ToLower(filename)

	family := ""
	for _, fm := range familyMarkers {
		for _, ext := range fm.exts {
			if strings.HasSuffix(name, ext) {
				family = fm.family
			}
		}
		if family != "" {
			break
		}
		for _, sub := range fm.substrs {
			if strings.Contains(name, sub) {
				family = fm.family
				break
			}
		}
		if family != "" {
			break
		}
	}
	if family == "" {
		return ""
	}

	switch family {
	case "osx":
		if containsAny(name, armMarkers) {
			return OSXArm64
		}
		return OSX
	case "windows":
		if hasArch(name, arch32Markers, arch64Markers) {
			return Windows32
		}
		return Windows64
	default:
		if hasArch(name, arch32Markers, arch64Markers) {
			return Linux32
		}
		return Linux64
	}
}

// Resolve picks the asset of a release matching the requested platform.
// wantExt, when non-empty, restricts the match to filenames with that
// extension; otherwise the family's extension preference order applies.
// The second return is false when nothing matches.
func Resolve(release *model.Release, platformID, wantExt string) (*model.Asset, bool) {
	want, ok := Normalize(platformID)
	if !ok {
		return nil, false
	}
	wantExt = normalizeExt(wantExt)

	var candidates []*model.Asset
	for _, asset := range release.Assets {
		got := Detect(asset.Filename)
		if got == "" || !matches(want, got) {
			continue
		}
		if wantExt != "" && !strings.HasSuffix(strings.ToLower(asset.Filename), wantExt) {
			continue
		}
		candidates = append(candidates, asset)
	}
	if len(candidates) == 0 {
		return nil, false
	}
	if wantExt != "" {
		return candidates[0], true
	}

	best := candidates[0]
	bestRank := extRank(familyOf(want), best.Filename)
	for _, c := range candidates[1:] {
		if r := extRank(familyOf(want), c.Filename); r < bestRank {
			best, bestRank = c, r
		}
	}
	return best, true
}

// ResolveFilename matches an asset by exact filename, bypassing platform
// classification. Used when a client asks for a named file directly.
func ResolveFilename(release *model.Release, filename string) (*model.Asset, bool) {
	for _, asset := range release.Assets {
		if asset.Filename == filename {
			return asset, true
		}
	}
	return nil, false
}

// Normalize maps a client platform name to a canonical identifier or family
// name. Returns false for unknown platforms.
func Normalize(platformID string) (string, bool) {
	p := strings.ToLower(strings.TrimSpace(platformID))
	if alias, ok := aliases[p]; ok {
		return alias, true
	}
	switch p {
	case OSX, OSXArm64, Windows32, Windows64, Linux32, Linux64:
		return p, true
	}
	return "", false
}

// FromUserAgent guesses the client platform from an HTTP User-Agent string.
// Returns "" when nothing matches.
func FromUserAgent(ua string) string {
	ua = strings.ToLower(ua)
	switch {
	case strings.Contains(ua, "darwin"), strings.Contains(ua, "mac"):
		if containsAny(ua, armMarkers) {
			return OSXArm64
		}
		return OSX
	case strings.Contains(ua, "windows"), strings.Contains(ua, "win32"):
		return Windows64
	case strings.Contains(ua, "linux"):
		return Linux64
	}
	return ""
}

// matches reports whether an asset classified as got satisfies a request for
// want, where want may be a bare family matching all its architectures.
func matches(want, got string) bool {
	if want == got {
		return true
	}
	switch want {
	case "windows", "linux":
		return familyOf(got) == want
	case OSX:
		return got == OSXArm64
	}
	return false
}

func familyOf(platformID string) string {
	if i := strings.IndexByte(platformID, '_'); i >= 0 && platformID != OSXArm64 {
		return platformID[:i]
	}
	if platformID == OSXArm64 {
		return "osx"
	}
	return platformID
}

func extRank(family, filename string) int {
	name := strings.ToLower(filename)
	for i, ext := range extPreference[family] {
		if strings.HasSuffix(name, ext) {
			return i
		}
	}
	return len(extPreference[family])
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// hasArch reports whether the filename carries a 32-bit marker that is not
// part of a 64-bit one ("x86" inside "x86_64" does not count).
func hasArch(name string, markers32, markers64 []string) bool {
	stripped := name
	for _, m := range markers64 {
		stripped = strings.ReplaceAll(stripped, m, "")
	}
	return containsAny(stripped, markers32)
}
