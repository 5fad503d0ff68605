// Package version carries the build metadata stamped in at link time.
package version

import (
	"fmt"
	"runtime"
)

// Populated via -ldflags at release time. The defaults describe a plain
// source build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
	BuiltBy = "unknown"
)

// Info is the full build record, including the toolchain the binary was
// compiled with.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	BuiltBy   string `json:"built_by"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Current reports the build metadata of the running binary.
func Current() Info {
	return Info{
		Version:   Version,
		Commit:    shortCommit(Commit),
		Date:      Date,
		BuiltBy:   BuiltBy,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders the multi-line block shown by the version command.
func (i Info) String() string {
	return fmt.Sprintf("portsage %s\n  commit:  %s\n  built:   %s by %s\n  runtime: %s %s",
		i.Version, i.Commit, i.Date, i.BuiltBy, i.GoVersion, i.Platform)
}

// Short is the single-line form used in logs and saved-run metadata.
func (i Info) Short() string {
	if i.Version == "dev" && i.Commit != "none" {
		return "portsage dev+" + i.Commit
	}
	return "portsage " + i.Version
}

// UserAgent identifies the tool on outbound HTTP requests.
func UserAgent() string {
	return "portsage/" + Version
}

// shortCommit trims a full SHA down to the familiar seven characters.
func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}
