package change

import (
	"slices"
	"testing"
)

func TestClassify(t *testing.T) {
	s := func(v ...string) []string { return v }

	tests := []struct {
		name       string
		oldV, oldS []string
		newV, newS []string
		want       Reason
		wantOK     bool
	}{
		{
			name: "empty record is fresh",
			oldV: s(), oldS: s(),
			newV: s("v1"), newS: s("https://a"),
			want: FreshBuild, wantOK: true,
		},
		{
			name: "zero sentinel is fresh",
			oldV: s("0"), oldS: s("https://a"),
			newV: s("v1"), newS: s("https://a"),
			want: FreshBuild, wantOK: true,
		},
		{
			name: "unrecorded sources is fresh",
			oldV: s("v1"), oldS: s(""),
			newV: s("v1"), newS: s("https://a"),
			want: FreshBuild, wantOK: true,
		},
		{
			name: "fresh wins over count change",
			oldV: s("", "0"), oldS: s("https://a", "https://b"),
			newV: s("v1"), newS: s("https://a"),
			want: FreshBuild, wantOK: true,
		},
		{
			name: "added bundle",
			oldV: s("v1"), oldS: s("https://a"),
			newV: s("v1", "v9"), newS: s("https://a", "https://b"),
			want: BundleCountChange, wantOK: true,
		},
		{
			name: "removed bundle with unchanged survivors",
			oldV: s("v1", "v2"), oldS: s("https://a", "https://b"),
			newV: s("v1"), newS: s("https://a"),
			want: BundleCountChange, wantOK: true,
		},
		{
			name: "source count mismatch only",
			oldV: s("v1"), oldS: s("https://a", "https://b"),
			newV: s("v1"), newS: s("https://a"),
			want: BundleCountChange, wantOK: true,
		},
		{
			name: "version update",
			oldV: s("v1"), oldS: s("https://a"),
			newV: s("v2"), newS: s("https://a"),
			want: VersionUpdate, wantOK: true,
		},
		{
			name: "source and version at same index prefers source",
			oldV: s("v1"), oldS: s("https://a"),
			newV: s("v2"), newS: s("https://b"),
			want: SourceChange, wantOK: true,
		},
		{
			name: "first differing index decides",
			oldV: s("v1", "v2"), oldS: s("https://a", "https://b"),
			newV: s("v9", "v2"), newS: s("https://a", "https://c"),
			want: VersionUpdate, wantOK: true,
		},
		{
			name: "identical is no change",
			oldV: s("v1", "v2"), oldS: s("https://a", "https://b"),
			newV: s("v1", "v2"), newS: s("https://a", "https://b"),
			wantOK: false,
		},
		{
			name: "downgrade is still an update",
			oldV: s("v5.1.0"), oldS: s("https://a"),
			newV: s("v5.0.0"), newS: s("https://a"),
			want: VersionUpdate, wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.oldV, tt.oldS, tt.newV, tt.newS)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("reason = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	oldV, oldS := []string{"v1", "v2"}, []string{"a", "b"}
	newV, newS := []string{"v1", "v3"}, []string{"a", "b"}
	first, _ := Classify(oldV, oldS, newV, newS)
	for range 100 {
		if got, _ := Classify(oldV, oldS, newV, newS); got != first {
			t.Fatalf("Classify changed its answer: %v then %v", first, got)
		}
	}
}

func TestClassifyNilInputs(t *testing.T) {
	if got, ok := Classify(nil, nil, nil, nil); !ok || got != FreshBuild {
		t.Errorf("Classify(nil...) = %v, %v; want FreshBuild", got, ok)
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		d    Decision
		want string
	}{
		{Decision{Reason: FreshBuild, NewVersions: []string{"v1", "v2"}}, "[FRESH] No previous build -> v1, v2"},
		{Decision{Reason: FreshBuild}, "[FRESH] No previous build -> N/A"},
		{Decision{Reason: VersionUpdate, OldVersions: []string{"1.0", "2.0"}, NewVersions: []string{"1.1", "2.0"}}, "[UPDATE] 1.0 -> 1.1"},
		{Decision{Reason: SourceChange}, "[SOURCE] Patch source URL changed"},
		{Decision{Reason: BundleCountChange, OldVersions: []string{"a", "b"}, NewVersions: []string{"a"}}, "[BUNDLES] 2 -> 1 patch bundles"},
	}
	for _, tt := range tests {
		if got := tt.d.Summary(); got != tt.want {
			t.Errorf("Summary() = %q, want %q", got, tt.want)
		}
	}
}

func TestGroupByReason(t *testing.T) {
	decisions := []Decision{
		{App: "reddit", Reason: BundleCountChange},
		{App: "youtube", Reason: VersionUpdate},
		{App: "twitter", Reason: FreshBuild},
		{App: "music", Reason: VersionUpdate},
	}
	groups := GroupByReason(decisions)

	var reasons []Reason
	for _, g := range groups {
		reasons = append(reasons, g.Reason)
	}
	if want := []Reason{FreshBuild, VersionUpdate, BundleCountChange}; !slices.Equal(reasons, want) {
		t.Errorf("group order = %v, want %v", reasons, want)
	}
	if got := Apps(groups[1].Decisions); !slices.Equal(got, []string{"youtube", "music"}) {
		t.Errorf("update group = %v", got)
	}
	if GroupByReason(nil) != nil {
		t.Error("no decisions should yield no groups")
	}
}

func TestDecide(t *testing.T) {
	d, ok := Decide("youtube", []string{"v1"}, []string{"a"}, []string{"v2"}, []string{"a"})
	if !ok || d.App != "youtube" || d.Reason != VersionUpdate {
		t.Errorf("Decide = %+v, %v", d, ok)
	}
	if _, ok := Decide("youtube", []string{"v1"}, []string{"a"}, []string{"v1"}, []string{"a"}); ok {
		t.Error("unchanged inputs should not produce a decision")
	}
}

func TestReasonStrings(t *testing.T) {
	for _, r := range Reasons {
		if r.Tag() == "UNKNOWN" {
			t.Errorf("%d has no tag", r)
		}
	}
	if Reason(42).Tag() != "UNKNOWN" {
		t.Error("unexpected tag for unknown reason")
	}
	if FreshBuild.String() != "Fresh build (no previous record)" {
		t.Errorf("FreshBuild.String() = %q", FreshBuild.String())
	}
}
