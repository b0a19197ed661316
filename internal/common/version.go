package common

// Populated at build time through -ldflags; the defaults identify a
// local development build.
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the semantic version.
func GetVersion() string {
	return Version
}

// GetBuild returns the build timestamp.
func GetBuild() string {
	return Build
}

// GetGitCommit returns the source commit hash.
func GetGitCommit() string {
	return GitCommit
}

// GetFullVersion returns version and build joined, or just the version
// for a local build.
func GetFullVersion() string {
	if Build == "unknown" {
		return Version
	}
	return Version + "-" + Build
}
