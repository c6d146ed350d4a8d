package github

import "strings"

// Release is the subset of the releases API response used here.
type Release struct {
	TagName    string  `json:"tag_name"`
	Name       string  `json:"name"`
	Draft      bool    `json:"draft"`
	Prerelease bool    `json:"prerelease"`
	Assets     []Asset `json:"assets"`
}

// Asset is one file attached to a release.
type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
	Size        int64  `json:"size"`
}

// Ref identifies a release of a repository.
type Ref struct {
	Owner   string
	Repo    string
	Release string // "latest", "tags/<tag>" or [LatestPrerelease]
}

// LatestPrerelease selects the newest published release including pre-releases.
const LatestPrerelease = "latest-prerelease"

// Tag returns the tag name for tag refs and the release selector otherwise.
func (r Ref) Tag() string {
	if tag, ok := strings.CutPrefix(r.Release, "tags/"); ok {
		return tag
	}
	return r.Release
}
