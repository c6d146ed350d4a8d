// Package github resolves files attached to GitHub releases.
//
// # Overview
//
// GitHub is used two ways: as an acquisition source for applications that
// publish their packages as release assets, and as the home of the patch
// tool and patch bundles. Both go through the releases API
// (https://api.github.com/repos/{owner}/{repo}/releases/...).
//
// # Release URLs
//
// Sources are configured as ordinary repository URLs. [ParseReleaseURL]
// understands these forms:
//
//	https://github.com/owner/repo                             latest release
//	https://github.com/owner/repo/releases/latest             latest release
//	https://github.com/owner/repo/releases/tag/v1.2.3         that tag
//	https://github.com/owner/repo/releases/latest-prerelease  newest release, pre-releases included
//
// # Assets
//
// An asset is selected by matching a regular expression against its
// download URL. [CLIFilter] and [PatchesFilter] select the patch tool and
// bundles; [PackageFilter] selects an installable package.
//
//	s := github.New(opts, token)
//	tag, url, err := s.FindAsset(ctx, "https://github.com/owner/cli", github.CLIFilter)
//
// # Authentication
//
// A personal access token is optional. Without one the API allows 60
// requests per hour, which a large build easily exceeds.
package github
