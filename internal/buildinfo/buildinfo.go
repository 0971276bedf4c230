// Package buildinfo holds build-time metadata injected via -ldflags.
package buildinfo

// Version is the release tag of this build.
// Inject via: -X github.com/kiarash-bot/kiarash/internal/buildinfo.Version=...
var Version = ""

// Commit is the git commit SHA of this build.
// Inject via: -X github.com/kiarash-bot/kiarash/internal/buildinfo.Commit=...
var Commit = ""

// Release names this build for error reports: the version, else the short
// commit, else "dev".
func Release() string {
	switch {
	case Version != "":
		return Version
	case len(Commit) > 12:
		return Commit[:12]
	case Commit != "":
		return Commit
	default:
		return "dev"
	}
}
