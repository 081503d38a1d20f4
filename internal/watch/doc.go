// Package watch re-runs an action whenever a single file is saved.
//
// The file's parent directory is watched rather than the file itself, so
// editors that save by writing a temporary file and renaming it over the
// original keep triggering. Bursts of events are collapsed into one run.
package watch
