package platform

import (
	"testing"
	"time"

	"github.com/glowlabs/hangar/internal/model"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"App-1.0.0.dmg", OSX},
		{"App-1.0.0-mac.zip", OSX},
		{"App-darwin-arm64.zip", OSXArm64},
		{"App-macos-aarch64.dmg", OSXArm64},
		{"App-Setup-1.0.0.exe", Windows64},
		{"App-win32-ia32.zip", Windows32},
		{"App-1.0.0-full.nupkg", Windows64},
		{"app-linux-x64.zip", Linux64},
		{"app-linux-i386.tar.gz", Linux32},
		{"app_1.0.0_amd64.deb", Linux64},
		{"app-1.0.0.x86_64.rpm", Linux64},
		{"RELEASES", ""},
		{"SHA256SUMS.txt", ""},
		{"source.tar.gz", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := Detect(tt.filename); got != tt.want {
				t.Fatalf("Detect(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func mkRelease(t *testing.T, filenames ...string) *model.Release {
	t.Helper()
	assets := make([]*model.Asset, len(filenames))
	for i, name := range filenames {
		assets[i] = &model.Asset{ID: int64(i + 1), Filename: name, Size: 100}
	}
	rel, ok := model.NewRelease("1.0.0", time.Now(), "", assets)
	if !ok {
		t.Fatal("bad release tag")
	}
	return rel
}

func TestResolve(t *testing.T) {
	rel := mkRelease(t,
		"App-1.0.0.dmg",
		"App-1.0.0-mac.zip",
		"App-Setup-1.0.0.exe",
		"app-linux-x64.zip",
	)

	tests := []struct {
		name     string
		platform string
		ext      string
		want     string
		wantOK   bool
	}{
		{"linux no hint", "linux", "", "app-linux-x64.zip", true},
		{"linux deb hint misses", "linux", "deb", "", false},
		{"osx prefers dmg", "osx", "", "App-1.0.0.dmg", true},
		{"osx zip hint", "osx", "zip", "App-1.0.0-mac.zip", true},
		{"darwin alias", "darwin", "", "App-1.0.0.dmg", true},
		{"windows", "windows", "", "App-Setup-1.0.0.exe", true},
		{"win32 alias", "win32", "", "App-Setup-1.0.0.exe", true},
		{"unknown platform", "plan9", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset, ok := Resolve(rel, tt.platform, tt.ext)
			if ok != tt.wantOK {
				t.Fatalf("Resolve ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && asset.Filename != tt.want {
				t.Fatalf("Resolve = %q, want %q", asset.Filename, tt.want)
			}
		})
	}
}

func TestResolveArchSpecific(t *testing.T) {
	rel := mkRelease(t, "app-linux-ia32.deb", "app-linux-x64.deb")

	asset, ok := Resolve(rel, Linux32, "")
	if !ok || asset.Filename != "app-linux-ia32.deb" {
		t.Fatalf("linux_32 query got %v", asset)
	}
	asset, ok = Resolve(rel, Linux64, "")
	if !ok || asset.Filename != "app-linux-x64.deb" {
		t.Fatalf("linux_64 query got %v", asset)
	}
}

func TestResolveFilename(t *testing.T) {
	rel := mkRelease(t, "RELEASES", "App-1.0.0-full.nupkg")

	asset, ok := ResolveFilename(rel, "RELEASES")
	if !ok || asset.Filename != "RELEASES" {
		t.Fatal("expected exact filename match to bypass classification")
	}
	if _, ok := ResolveFilename(rel, "missing.zip"); ok {
		t.Fatal("expected miss for unknown filename")
	}
}

func TestFromUserAgent(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"App/1.0.0 (Macintosh; Intel Mac OS X 10_15)", OSX},
		{"App/1.0.0 (darwin arm64)", OSXArm64},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", Windows64},
		{"curl/8.0 (x86_64-pc-linux-gnu)", Linux64},
		{"something else", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ua, func(t *testing.T) {
			if got := FromUserAgent(tt.ua); got != tt.want {
				t.Fatalf("FromUserAgent(%q) = %q, want %q", tt.ua, got, tt.want)
			}
		})
	}
}
