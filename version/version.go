// Package version carries build information stamped in with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/pitabwire/lingua/version.Version=v1.2.0" ./cmd/lingua
package version //nolint:revive // package name intentionally matches build-info convention

import "fmt"

const unknown = "dev"

//nolint:gochecknoglobals //version information is set at build time
var (
	Repository string
	Version    string
	Commit     string
	Date       string
)

// Current is Version, or "dev" for an unstamped build.
func Current() string {
	if Version == "" {
		return unknown
	}
	return Version
}

// String describes the build on one line.
func String() string {
	s := "lingua " + Current()
	if Commit != "" {
		s += fmt.Sprintf(" (%s", Commit)
		if Date != "" {
			s += " " + Date
		}
		s += ")"
	}
	if Repository != "" {
		s += " " + Repository
	}
	return s
}
