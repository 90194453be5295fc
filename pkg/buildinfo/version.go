// Package buildinfo reports which fm3 build is running.
//
// Release builds stamp the variables with ldflags:
//
//	go build -ldflags "-X github.com/matzehuels/fm3/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/matzehuels/fm3/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/fm3/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Binaries built with "go install module@version" carry no ldflags; for
// those the module version and VCS stamp embedded by the toolchain are used
// instead. The version also scopes cache keys, so layouts computed by one
// engine build are never served by another.
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"sync"
)

var (
	// Version is the semantic version (e.g., "v1.2.3").
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

var fillOnce sync.Once

// fill replaces unstamped values with what the toolchain recorded.
func fill() {
	fillOnce.Do(func() {
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		fillFrom(bi)
	})
}

func fillFrom(bi *debug.BuildInfo) {
	if Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && Commit == "none":
			Commit = s.Value
		case s.Key == "vcs.time" && Date == "unknown":
			Date = s.Value
		}
	}
}

// CurrentVersion returns Version after filling it from the embedded module
// information when no ldflags were given.
func CurrentVersion() string {
	fill()
	return Version
}

// String returns the formatted build information.
func String() string {
	fill()
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template returns the version template string for cobra.
func Template() string {
	fill()
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}
