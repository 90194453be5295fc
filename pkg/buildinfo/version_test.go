package buildinfo

import (
	"runtime/debug"
	"strings"
	"testing"
)

func restore(t *testing.T) {
	v, c, d := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = v, c, d })
}

func TestFillFrom(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2025-01-02T03:04:05Z"},
		},
	}

	tests := []struct {
		name                string
		version, commit     string
		wantVersion, wantCm string
	}{
		{"unstamped", "dev", "none", "v1.4.0", "abc123"},
		{"ldflags win", "v2.0.0", "fff", "v2.0.0", "fff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restore(t)
			Version, Commit, Date = tt.version, tt.commit, "unknown"
			fillFrom(bi)
			if Version != tt.wantVersion || Commit != tt.wantCm {
				t.Errorf("Version, Commit = %s, %s, want %s, %s", Version, Commit, tt.wantVersion, tt.wantCm)
			}
			if Date != "2025-01-02T03:04:05Z" {
				t.Errorf("Date = %s", Date)
			}
		})
	}

	restore(t)
	Version = "dev"
	fillFrom(&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	if Version != "dev" {
		t.Errorf("Version = %s, want dev for a devel build", Version)
	}
}

func TestTemplate(t *testing.T) {
	if got := Template(); !strings.HasPrefix(got, "{{.Name}} version ") {
		t.Errorf("Template() = %q", got)
	}
	if got := String(); !strings.Contains(got, "commit: ") {
		t.Errorf("String() = %q", got)
	}
}
