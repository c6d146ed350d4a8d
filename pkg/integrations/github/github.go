package github

import (
	"context"
	stderrors "errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/integrations"
)

// Name identifies this source in errors and logs.
const Name = "github"

// Host is the prefix every GitHub source starts with.
const Host = "https://github.com"

const defaultBaseURL = "https://api.github.com"

// Asset filters, matched against download URLs.
const (
	CLIFilter     = `.*jar`
	PatchesFilter = `.*rvp`
	PackageFilter = `(?i)\.(apk|apkm|xapk|apks)$`
)

// prereleasePage bounds the release listing scanned for [LatestPrerelease].
const prereleasePage = 30

// Strategy downloads release assets.
type Strategy struct {
	client  *integrations.Client
	baseURL string
	dir     string
	logger  *log.Logger
}

// New creates a Strategy. token may be empty.
func New(opts integrations.Options, token string) *Strategy {
	headers := map[string]string{"Accept": "application/vnd.github.v3+json"}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return &Strategy{
		client:  opts.Client(Name, headers),
		baseURL: defaultBaseURL,
		dir:     opts.Dir,
		logger:  opts.Log(),
	}
}

// SetBaseURL points the strategy at another API endpoint, such as a
// GitHub Enterprise server.
func (s *Strategy) SetBaseURL(u string) { s.baseURL = strings.TrimSuffix(u, "/") }

// Name returns the source name.
func (s *Strategy) Name() string { return Name }

// Match reports whether source is a GitHub URL.
func Match(source string) bool { return strings.HasPrefix(source, Host) }

// ParseReleaseURL extracts the repository and release selector from a
// GitHub repository or release URL.
func ParseReleaseURL(raw string) (Ref, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Ref{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid github url %q", raw)
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) < 2 || segs[0] == "" || segs[1] == "" {
		return Ref{}, errors.New(errors.ErrCodeInvalidInput, "github url must name owner/repo: %q", raw)
	}

	ref := Ref{Owner: segs[0], Repo: segs[1], Release: "latest"}
	if len(segs) > 3 && segs[3] == LatestPrerelease {
		ref.Release = LatestPrerelease
		return ref, nil
	}
	for i, seg := range segs {
		if seg == "tag" && i+1 < len(segs) {
			ref.Release = "tags/" + segs[i+1]
			break
		}
	}
	return ref, nil
}

// LookupRelease fetches the release ref points at. Tagged releases are
// immutable and served from the metadata cache; moving selectors are always
// fetched.
func (s *Strategy) LookupRelease(ctx context.Context, ref Ref) (*Release, error) {
	if ref.Release == LatestPrerelease {
		return s.latestPrerelease(ctx, ref)
	}

	apiURL := s.baseURL + "/repos/" + ref.Owner + "/" + ref.Repo + "/releases/" + ref.Release
	var rel Release
	fetch := func() error { return s.client.Get(ctx, apiURL, &rel) }

	var err error
	if strings.HasPrefix(ref.Release, "tags/") {
		err = s.client.Cached(ctx, ref.Owner+"/"+ref.Repo+"@"+ref.Tag(), false, &rel, fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		return nil, classify(apiURL, err)
	}
	return &rel, nil
}

func (s *Strategy) latestPrerelease(ctx context.Context, ref Ref) (*Release, error) {
	apiURL := s.baseURL + "/repos/" + ref.Owner + "/" + ref.Repo + "/releases?per_page=" + strconv.Itoa(prereleasePage)
	var releases []Release
	if err := s.client.Get(ctx, apiURL, &releases); err != nil {
		return nil, classify(apiURL, err)
	}
	for i := range releases {
		if !releases[i].Draft {
			s.logger.Debug("including pre-releases", "repo", ref.Owner+"/"+ref.Repo, "tag", releases[i].TagName)
			return &releases[i], nil
		}
	}
	return nil, errors.NotFound(Name, apiURL, "no published releases")
}

// FindAsset resolves source to a release and returns its tag together with
// the download URL of the first asset matching filter.
func (s *Strategy) FindAsset(ctx context.Context, source, filter string) (tag, assetURL string, err error) {
	pattern, err := regexp.Compile(filter)
	if err != nil {
		return "", "", errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid asset filter %q", filter)
	}
	ref, err := ParseReleaseURL(source)
	if err != nil {
		return "", "", err
	}
	rel, err := s.LookupRelease(ctx, ref)
	if err != nil {
		return "", "", err
	}
	for _, a := range rel.Assets {
		if pattern.MatchString(a.DownloadURL) {
			s.logger.Debug("found asset", "name", a.Name, "url", a.DownloadURL)
			return rel.TagName, a.DownloadURL, nil
		}
	}
	return "", "", errors.Download(Name, source, "no asset of %s matches %q", rel.TagName, filter)
}

// FetchLatest downloads the package attached to the release the app source
// points at.
func (s *Strategy) FetchLatest(ctx context.Context, app *apk.App) (apk.Result, error) {
	return s.fetch(ctx, app, app.Source)
}

// FetchSpecific downloads the package attached to the release tagged version.
func (s *Strategy) FetchSpecific(ctx context.Context, app *apk.App, version string) (apk.Result, error) {
	ref, err := ParseReleaseURL(app.Source)
	if err != nil {
		return apk.Result{}, err
	}
	return s.fetch(ctx, app, Host+"/"+ref.Owner+"/"+ref.Repo+"/releases/tag/"+version)
}

func (s *Strategy) fetch(ctx context.Context, app *apk.App, source string) (apk.Result, error) {
	tag, assetURL, err := s.FindAsset(ctx, source, PackageFilter)
	if err != nil {
		return apk.Result{}, err
	}
	fileName := app.Name + strings.ToLower(integrations.URLExt(assetURL))
	if err := s.Download(ctx, assetURL, fileName); err != nil {
		return apk.Result{}, err
	}
	return apk.Result{FileName: fileName, URL: assetURL, Version: tag}, nil
}

// Download fetches a resolved asset into the download directory.
func (s *Strategy) Download(ctx context.Context, assetURL, fileName string) error {
	if err := s.client.Download(ctx, assetURL, s.dir, fileName, nil); err != nil {
		return errors.Download(Name, assetURL, "download failed").WithCause(err)
	}
	return nil
}

func classify(apiURL string, err error) error {
	if stderrors.Is(err, integrations.ErrNotFound) {
		return errors.NotFound(Name, apiURL, "release not found").WithCause(err)
	}
	return errors.Download(Name, apiURL, "release lookup failed").WithCause(err)
}
