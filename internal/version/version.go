// Package version exposes the cairn release version.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Commit is the git revision, injected at build time via ldflags.
var Commit = ""

// Get returns the current version, with whitespace trimmed.
func Get() string {
	return strings.TrimSpace(versionContent)
}

// Full returns the version with the commit suffix when one was injected.
func Full() string {
	v := Get()
	if Commit != "" {
		return v + "+" + Commit
	}
	return v
}
