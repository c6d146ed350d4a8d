// Package integrations provides the HTTP plumbing shared by acquisition sources.
//
// # Overview
//
// Each source apkfetch can acquire packages from has its own subpackage:
//
//   - [apkmirror]: APKMirror catalog and release pages
//   - [apkpure]: APKPure store pages
//   - [uptodown]: Uptodown pages and its paginated version API
//   - [apkmonk]: APKMonk pages with script-embedded download keys
//   - [apksos]: APKSOS single-link download pages
//   - [gdrive]: Google Drive shared files
//   - [github]: GitHub release assets (apps, patch tool, patch bundles)
//   - [apkeep]: Google Play through the apkeep tool
//
// # Strategy Pattern
//
// Every source exposes the same three methods and is built from [Options]:
//
//	s := apkmirror.New(opts)
//	res, err := s.FetchLatest(ctx, app)
//	res, err = s.FetchSpecific(ctx, app, "19.16.39")
//
// A strategy either returns a downloaded file in Options.Dir or a
// structured error from [errors] naming the source and the URL that failed.
// It never returns an empty result.
//
// # Shared Infrastructure
//
// The [Client] type provides:
//   - JSON, text and HTML (goquery) GETs with retry for network errors and 5xx
//   - a metadata cache via [cache.Cache] for responses that never change
//   - file downloads through a temporary file, timed into a [Recorder]
//   - a fixed [HTTPTimeout] and browser [UserAgent]
//
// # Adding a New Source
//
//  1. Create a subpackage: pkg/integrations/<site>/
//  2. Implement Name, FetchLatest and FetchSpecific on a Strategy
//  3. Use [Options.Client] for HTTP with retry and caching
//  4. Register a predicate and constructor in [source.NewResolver]
//
// [apkmirror]: github.com/matzehuels/apkfetch/pkg/integrations/apkmirror
// [apkpure]: github.com/matzehuels/apkfetch/pkg/integrations/apkpure
// [uptodown]: github.com/matzehuels/apkfetch/pkg/integrations/uptodown
// [apkmonk]: github.com/matzehuels/apkfetch/pkg/integrations/apkmonk
// [apksos]: github.com/matzehuels/apkfetch/pkg/integrations/apksos
// [gdrive]: github.com/matzehuels/apkfetch/pkg/integrations/gdrive
// [github]: github.com/matzehuels/apkfetch/pkg/integrations/github
// [apkeep]: github.com/matzehuels/apkfetch/pkg/integrations/apkeep
// [errors]: github.com/matzehuels/apkfetch/pkg/errors
// [cache.Cache]: github.com/matzehuels/apkfetch/pkg/cache.Cache
// [source.NewResolver]: github.com/matzehuels/apkfetch/pkg/source.NewResolver
package integrations
