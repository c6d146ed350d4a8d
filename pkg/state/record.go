package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/apkfetch/pkg/apk"
)

// NoRecord is the value reported for resources of an app that was never built.
const NoRecord = "0"

// Record is what a previous run stored about one app.
type Record struct {
	AppVersion      string
	AppSource       string
	PatchesVersions []string
	PatchesSources  []string
	CLIVersion      string
	PatchedAt       time.Time
}

// Versions returns the recorded patch bundle versions, or [NoRecord] when
// none were recorded.
func (r Record) Versions() []string {
	if len(r.PatchesVersions) == 0 {
		return []string{NoRecord}
	}
	return r.PatchesVersions
}

// Sources returns the recorded patch bundle sources, or [NoRecord] when none
// were recorded.
func (r Record) Sources() []string {
	if len(r.PatchesSources) == 0 {
		return []string{NoRecord}
	}
	return r.PatchesSources
}

// Empty reports whether r holds nothing at all.
func (r Record) Empty() bool {
	return r.AppVersion == "" && r.AppSource == "" && len(r.PatchesVersions) == 0 &&
		len(r.PatchesSources) == 0 && r.CLIVersion == "" && r.PatchedAt.IsZero()
}

// FromApp builds the record of a successful build of app.
func FromApp(app *apk.App, at time.Time) Record {
	return Record{
		AppVersion:      app.VersionOrLatest(),
		AppSource:       app.Source,
		PatchesVersions: app.BundleVersions(),
		PatchesSources:  app.BundleSources(),
		CLIVersion:      app.CLI.Version,
		PatchedAt:       at,
	}
}

// Values is a list of strings that also decodes from a single JSON string,
// a number, or null. Older documents stored one value where newer ones
// store a list.
type Values []string

// UnmarshalJSON implements [json.Unmarshaler].
func (v *Values) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make(Values, len(raw))
		for i, r := range raw {
			s, err := scalar(r)
			if err != nil {
				return err
			}
			out[i] = s
		}
		*v = out
		return nil
	}
	s, err := scalar(data)
	if err != nil {
		return err
	}
	if s == "" {
		*v = nil
		return nil
	}
	*v = Values{s}
	return nil
}

// scalar decodes a JSON string, number or null into a string.
func scalar(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		return "", nil
	case len(data) > 0 && data[0] == '"':
		var s string
		err := json.Unmarshal(data, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", data)
	}
	return n.String(), nil
}

// document is the on-disk shape of one record. Both the list keys and the
// single-value keys of older documents are read; only the list keys are
// written.
type document struct {
	AppVersion      text   `json:"app_version"`
	PatchesVersions Values `json:"patches_versions,omitempty"`
	PatchesVersion  Values `json:"patches_version,omitempty"`
	CLIVersion      text   `json:"cli_version"`
	PatchedAtMS     int64  `json:"ms_epoch_since_patched,omitempty"`
	DatePatched     string `json:"date_patched,omitempty"`
	Dump            dump   `json:"app_dump"`
}

type dump struct {
	Source      string `json:"download_source,omitempty"`
	PatchesList Values `json:"patches_dl_list,omitempty"`
	Patches     string `json:"patches_dl,omitempty"`
}

// MarshalJSON implements [json.Marshaler].
func (r Record) MarshalJSON() ([]byte, error) {
	d := document{
		AppVersion:      text(r.AppVersion),
		PatchesVersions: Values(r.PatchesVersions),
		CLIVersion:      text(r.CLIVersion),
		Dump: dump{
			Source:      r.AppSource,
			PatchesList: Values(r.PatchesSources),
		},
	}
	if !r.PatchedAt.IsZero() {
		d.PatchedAtMS = r.PatchedAt.UnixMilli()
		d.DatePatched = r.PatchedAt.Format(time.RFC3339)
	}
	return json.Marshal(d)
}

// MarshalJSON implements [json.Marshaler] so a list is always written as one.
func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal([]string(v))
}

// UnmarshalJSON implements [json.Unmarshaler]. Missing or null values decode
// to empty strings and nil lists.
func (r *Record) UnmarshalJSON(data []byte) error {
	var d document
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	*r = Record{
		AppVersion:      string(d.AppVersion),
		AppSource:       d.Dump.Source,
		PatchesVersions: d.PatchesVersions,
		PatchesSources:  d.Dump.PatchesList,
		CLIVersion:      string(d.CLIVersion),
	}
	if len(r.PatchesVersions) == 0 {
		r.PatchesVersions = d.PatchesVersion
	}
	if len(r.PatchesSources) == 0 && d.Dump.Patches != "" {
		r.PatchesSources = splitList(d.Dump.Patches)
	}
	switch {
	case d.PatchedAtMS > 0:
		r.PatchedAt = time.UnixMilli(d.PatchedAtMS).UTC()
	case d.DatePatched != "":
		if t, err := time.Parse(time.RFC3339, d.DatePatched); err == nil {
			r.PatchedAt = t
		}
	}
	return nil
}

// text is a string that also decodes from a number or null.
type text string

// UnmarshalJSON implements [json.Unmarshaler].
func (t *text) UnmarshalJSON(data []byte) error {
	s, err := scalar(data)
	*t = text(s)
	return err
}

// splitList splits a comma-separated source list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Document is a whole prior-state feed keyed by app name.
type Document map[string]Record

// Decode parses a prior-state feed. An empty input is an empty document.
func Decode(data []byte) (Document, error) {
	doc := Document{}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Encode renders doc as indented JSON with a trailing newline.
func (d Document) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
