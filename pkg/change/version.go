package change

import (
	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/apkfetch/pkg/errors"
)

// Compare orders two version strings by semantic versioning. It returns -1,
// 0 or 1 like [semver.Version.Compare]. Versions that do not parse are
// reported as INVALID_VERSION rather than compared as strings.
func Compare(a, b string) (int, error) {
	va, err := semver.NewVersion(a)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidVersion, err, "parse version %q", a)
	}
	vb, err := semver.NewVersion(b)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidVersion, err, "parse version %q", b)
	}
	return va.Compare(vb), nil
}

// ShouldTrigger reports whether moving from (oldVersion, oldSource) to
// (newVersion, newSource) warrants a rebuild: the source changed, nothing
// was recorded, or the version moved forward. Downgrades do not trigger.
// Equal versions never trigger, including "latest" on both sides: packages
// from sources that cannot discover a version are compared by source alone,
// so their rebuilds come from bundle changes.
func ShouldTrigger(oldVersion, oldSource, newVersion, newSource string) (bool, error) {
	if IsSentinel(oldVersion) || IsSentinel(oldSource) {
		return true, nil
	}
	if oldSource != newSource {
		return true, nil
	}
	if oldVersion == newVersion {
		return false, nil
	}
	c, err := Compare(oldVersion, newVersion)
	if err != nil {
		return false, err
	}
	return c < 0, nil
}
