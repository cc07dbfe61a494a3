// Package version carries build identification, injected at build time via
// -ldflags "-X ...".
package version

import "fmt"

var (
	// Version is the release tag, "dev" for local builds
	Version = "dev"
	// GitSHA is the git commit the binary was built from
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the one-line build stamp the binaries print for -version.
func String() string {
	return fmt.Sprintf("%s (%s, built %s)", Version, GitSHA, BuildTime)
}
