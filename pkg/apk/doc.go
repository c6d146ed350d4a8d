// Package apk defines the data model shared by every acquisition step.
//
// An [App] is built once per run from configuration and carries both the
// configured inputs (package name, acquisition source, pinned version,
// architecture preference, patch bundle sources) and the values resolved
// while the run progresses (discovered version, local file name, direct
// download URL). Apps are never persisted.
//
// [SelectArtifact] implements the architecture preference used by sources
// that publish several variants of one release.
package apk
