// Package change decides whether an application needs rebuilding.
//
// [Classify] compares the patch bundle versions and sources recorded by the
// previous run with the ones observed now. It is a pure function: it never
// touches the network, never panics and returns the same answer for the
// same input.
//
// The checks run in a fixed order and the first one that matches wins:
//
//  1. [FreshBuild]: nothing usable was recorded
//  2. [BundleCountChange]: a bundle was added or removed
//  3. [SourceChange] or [VersionUpdate]: at the first index where either
//     the source or the version differs, a source change takes precedence
//
// Identical inputs produce no decision.
package change

import (
	"fmt"
	"strings"
)

// Reason classifies why a rebuild is required.
type Reason int

// Reasons, in reporting order.
const (
	FreshBuild Reason = iota + 1
	VersionUpdate
	SourceChange
	BundleCountChange
)

// Reasons lists every Reason in reporting order.
var Reasons = []Reason{FreshBuild, VersionUpdate, SourceChange, BundleCountChange}

// String returns the human-readable description of r.
func (r Reason) String() string {
	switch r {
	case FreshBuild:
		return "Fresh build (no previous record)"
	case VersionUpdate:
		return "Version update"
	case SourceChange:
		return "Patch source changed"
	case BundleCountChange:
		return "Number of patch bundles changed"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// Tag returns the short summary tag of r, e.g. "FRESH".
func (r Reason) Tag() string {
	switch r {
	case FreshBuild:
		return "FRESH"
	case VersionUpdate:
		return "UPDATE"
	case SourceChange:
		return "SOURCE"
	case BundleCountChange:
		return "BUNDLES"
	}
	return "UNKNOWN"
}

// IsSentinel reports whether v is a recorded value meaning "no record".
func IsSentinel(v string) bool {
	return v == "" || v == "0"
}

func unrecorded(values []string) bool {
	for _, v := range values {
		if !IsSentinel(v) {
			return false
		}
	}
	return true
}

// Classify returns the reason a rebuild is required, or false if none is.
func Classify(oldVersions, oldSources, newVersions, newSources []string) (Reason, bool) {
	if unrecorded(oldVersions) || unrecorded(oldSources) {
		return FreshBuild, true
	}
	if len(oldVersions) != len(newVersions) || len(oldSources) != len(newSources) {
		return BundleCountChange, true
	}
	n := min(len(oldVersions), len(oldSources))
	for i := range n {
		if oldSources[i] != newSources[i] {
			return SourceChange, true
		}
		if oldVersions[i] != newVersions[i] {
			return VersionUpdate, true
		}
	}
	return 0, false
}

// Decision records why one application needs rebuilding.
type Decision struct {
	App         string
	Reason      Reason
	OldVersions []string
	NewVersions []string
	OldSources  []string
	NewSources  []string
}

// Decide classifies app and returns a Decision, or false if no rebuild is needed.
func Decide(app string, oldVersions, oldSources, newVersions, newSources []string) (Decision, bool) {
	reason, ok := Classify(oldVersions, oldSources, newVersions, newSources)
	if !ok {
		return Decision{}, false
	}
	return Decision{
		App:         app,
		Reason:      reason,
		OldVersions: oldVersions,
		NewVersions: newVersions,
		OldSources:  oldSources,
		NewSources:  newSources,
	}, true
}

// Summary renders a one-line description such as "[UPDATE] v1 -> v2".
func (d Decision) Summary() string {
	switch d.Reason {
	case FreshBuild:
		versions := "N/A"
		if len(d.NewVersions) > 0 {
			versions = strings.Join(d.NewVersions, ", ")
		}
		return "[FRESH] No previous build -> " + versions
	case VersionUpdate:
		var changes []string
		for i := range min(len(d.OldVersions), len(d.NewVersions)) {
			if d.OldVersions[i] != d.NewVersions[i] {
				changes = append(changes, d.OldVersions[i]+" -> "+d.NewVersions[i])
			}
		}
		return "[UPDATE] " + strings.Join(changes, ", ")
	case SourceChange:
		return "[SOURCE] Patch source URL changed"
	case BundleCountChange:
		return fmt.Sprintf("[BUNDLES] %d -> %d patch bundles", len(d.OldVersions), len(d.NewVersions))
	}
	return "[UNKNOWN] " + d.Reason.String()
}

// Group is the set of decisions sharing one Reason.
type Group struct {
	Reason    Reason
	Decisions []Decision
}

// GroupByReason groups decisions in reporting order, omitting empty groups.
// Decisions keep their input order within a group.
func GroupByReason(decisions []Decision) []Group {
	by := make(map[Reason][]Decision)
	for _, d := range decisions {
		by[d.Reason] = append(by[d.Reason], d)
	}
	var groups []Group
	for _, r := range Reasons {
		if ds := by[r]; len(ds) > 0 {
			groups = append(groups, Group{Reason: r, Decisions: ds})
		}
	}
	return groups
}

// Apps returns the application names of decisions in order.
func Apps(decisions []Decision) []string {
	out := make([]string, len(decisions))
	for i, d := range decisions {
		out[i] = d.App
	}
	return out
}
