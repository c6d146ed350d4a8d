package apk

import (
	"regexp"
	"slices"
	"sort"
)

// Artifact is one downloadable variant of a release.
type Artifact struct {
	URL    string
	Archs  []string // declared architectures; empty means universal
	Bundle bool     // multi-file bundle rather than a single package
}

func (a Artifact) universal() bool {
	if len(a.Archs) == 0 {
		return true
	}
	return slices.Contains(a.Archs, "universal") || slices.Contains(a.Archs, "noarch")
}

// coverage counts how many preferred architectures a supports.
func (a Artifact) coverage(pref []string) int {
	if a.universal() {
		return len(pref)
	}
	n := 0
	for _, p := range pref {
		if slices.Contains(a.Archs, p) {
			n++
		}
	}
	return n
}

// SelectArtifact picks the preferred variant among candidates.
//
// Candidates are ranked by:
//  1. how many of the preferred architectures they cover
//  2. how many architectures they declare (more is more specific)
//  3. the preference order: the first preferred arch one supports and the other doesn't wins
//  4. single-file packages over bundles
//
// Remaining ties keep input order. pref defaults to [DefaultArchs].
// The bool is false only when candidates is empty.
func SelectArtifact(candidates []Artifact, pref []string) (Artifact, bool) {
	if len(candidates) == 0 {
		return Artifact{}, false
	}
	sorted := RankArtifacts(candidates, pref)
	return sorted[0], true
}

// RankArtifacts returns candidates ordered best first using the rules of
// [SelectArtifact]. The input slice is not modified.
func RankArtifacts(candidates []Artifact, pref []string) []Artifact {
	if len(pref) == 0 {
		pref = DefaultArchs
	}
	out := slices.Clone(candidates)
	sort.SliceStable(out, func(i, j int) bool {
		return better(out[i], out[j], pref)
	})
	return out
}

func better(a, b Artifact, pref []string) bool {
	if ca, cb := a.coverage(pref), b.coverage(pref); ca != cb {
		return ca > cb
	}
	if la, lb := archCount(a), archCount(b); la != lb {
		return la > lb
	}
	if !a.universal() && !b.universal() {
		for _, p := range pref {
			ha, hb := slices.Contains(a.Archs, p), slices.Contains(b.Archs, p)
			if ha != hb {
				return ha
			}
		}
	}
	if a.Bundle != b.Bundle {
		return !a.Bundle
	}
	return false
}

func archCount(a Artifact) int {
	if a.universal() {
		return len(possibleArchs)
	}
	return len(a.Archs)
}

// possibleArchs is every ABI a patched package can ship.
var possibleArchs = []string{"armeabi-v7a", "x86", "x86_64", "arm64-v8a"}

// ExcludedArchs returns the ABIs not listed in keep. An empty keep means
// all architectures are kept.
func ExcludedArchs(keep []string) []string {
	if len(keep) == 0 {
		return nil
	}
	var out []string
	for _, a := range possibleArchs {
		if !slices.Contains(keep, a) {
			out = append(out, a)
		}
	}
	return out
}

var archPattern = regexp.MustCompile(`arm64-v8a|armeabi-v7a|x86_64|x86|universal|noarch`)

// ParseArchs extracts architecture names from listing text such as
// "arm64-v8a + armeabi-v7a", in order of appearance and without duplicates.
func ParseArchs(text string) []string {
	var out []string
	for _, m := range archPattern.FindAllString(text, -1) {
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out
}
