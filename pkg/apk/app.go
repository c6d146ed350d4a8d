package apk

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Latest is the version sentinel meaning "whatever the source considers current".
const Latest = "latest"

// File extensions.
const (
	ExtAPK  = ".apk"
	ExtAPKM = ".apkm"
	ExtXAPK = ".xapk"
	ExtAPKS = ".apks"
	ExtZip  = ".zip"
)

// DefaultArchs is the architecture preference used when none is configured.
var DefaultArchs = []string{"arm64-v8a", "armeabi-v7a", "x86_64", "x86"}

// App is one application to acquire and patch.
type App struct {
	Name        string // identifier, e.g. "youtube"
	PackageName string // market identifier, e.g. "com.google.android.youtube"
	Version     string // pinned version or [Latest]
	Source      string // acquisition source URL
	DirectURL   string // optional direct download bypassing scraping
	Archs       []string

	CLI     BundleRef   // patch tool
	Bundles []BundleRef // patch bundles, in configured order

	Keystore    string
	OptionsFile string
	Include     []string
	Exclude     []string
	OldKey      bool

	// Resolved during the run.
	FileName    string
	DownloadURL string
}

// BundleRef is one independently versioned resource source of an app.
type BundleRef struct {
	Source   string
	Version  string
	FileName string
}

// Result is what an acquisition returns: the local file name, the
// resolved direct download URL and, for sources that can discover it, the
// version that was actually downloaded.
type Result struct {
	FileName string
	URL      string
	Version  string // empty when the source cannot tell
}

// VersionOrLatest returns the pinned version, or [Latest] if none is pinned.
func (a *App) VersionOrLatest() string {
	if a.Version == "" {
		return Latest
	}
	return a.Version
}

// Pinned reports whether a specific version was requested.
func (a *App) Pinned() bool {
	return a.VersionOrLatest() != Latest
}

// BundleVersions returns the resolved versions of all patch bundles in order.
func (a *App) BundleVersions() []string {
	out := make([]string, len(a.Bundles))
	for i, b := range a.Bundles {
		out[i] = b.Version
	}
	return out
}

// BundleSources returns the source URLs of all patch bundles in order.
func (a *App) BundleSources() []string {
	out := make([]string, len(a.Bundles))
	for i, b := range a.Bundles {
		out[i] = b.Source
	}
	return out
}

// BundleFiles returns the local file names of all patch bundles in order.
func (a *App) BundleFiles() []string {
	out := make([]string, len(a.Bundles))
	for i, b := range a.Bundles {
		out[i] = b.FileName
	}
	return out
}

// IsSingleFile reports whether name is already an installable package.
func IsSingleFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ExtAPK)
}

// IsBundle reports whether name is a multi-part archive.
func IsBundle(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ExtAPKM, ExtXAPK, ExtAPKS, ExtZip:
		return true
	}
	return false
}

var (
	slugInvalid = regexp.MustCompile(`[^\w\s-]`)
	slugSpace   = regexp.MustCompile(`\s+`)
	slugDashes  = regexp.MustCompile(`-+`)
)

// Slug lowercases s and replaces anything that is not a word character
// with single dashes, e.g. "19.16.39 Beta" becomes "19-16-39-beta".
func Slug(s string) string {
	s = strings.ToLower(s)
	s = slugInvalid.ReplaceAllString(s, "-")
	s = slugSpace.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
