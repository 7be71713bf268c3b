package version

import "fmt"

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("installtool version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}

// SSHClientVersion is the identification string sent during the SSH handshake,
// so deployments show up recognizably in the remote sshd logs.
func SSHClientVersion() string {
	return "SSH-2.0-installtool_" + Version
}
