// Package version exposes build metadata stamped at link time via
// -ldflags "-X github.com/heliosml/helios/internal/version.Version=...".
package version

// Populated by the build; all empty in a plain `go build`.
var (
	Version   = ""
	Commit    = ""
	BuildTime = ""
)

// Info is the resolved metadata for display.
type Info struct {
	Version   string
	Commit    string
	BuildTime string
}

// Resolve never returns an empty Version: an unstamped binary reports the
// build timestamp when one was stamped, otherwise "dev".
func Resolve() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
	}
	if info.Version == "" {
		info.Version = info.BuildTime
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	return info
}

// String renders the one-line form used by --version output:
// "v0.3.0 (1a2b3c4d5e6f)".
func String() string {
	info := Resolve()
	if info.Commit == "" {
		return info.Version
	}
	return info.Version + " (" + shortCommit(info.Commit) + ")"
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
