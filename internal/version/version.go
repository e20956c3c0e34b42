package version

import "fmt"

// Version is the service current released version.
// This value can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/kopibot/kopibot/internal/version.Version=v0.3.0"
//
// Semantic versioning: https://semver.org/
var Version = "0.0.0-dev"

// GitCommit is the git commit hash at build time.
// Set via ldflags: -X github.com/kopibot/kopibot/internal/version.GitCommit=$(git rev-parse HEAD)
var GitCommit = "unknown"

// BuildTime is the build timestamp in RFC3339 format.
// Set via ldflags: -X github.com/kopibot/kopibot/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)
var BuildTime = "unknown"

// GetCurrentVersion returns the version string reported on /healthz and in
// startup logs.
func GetCurrentVersion(mode string) string {
	if mode == "dev" || mode == "demo" {
		return fmt.Sprintf("%s-%s", Version, mode)
	}
	return Version
}
