// Package version reports the build of the running binary
package version

// BuildInfo holds version information about the service build
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info returns the build information. Version, commit and date are set with
// -ldflags "-X 'instapilot/internal/core/version.version=v0.1.0'"
func Info() BuildInfo {
	return BuildInfo{
		Service: "instapilot",
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
