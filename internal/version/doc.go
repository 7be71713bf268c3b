// Package version exposes build metadata for installtool.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. Short and Full render them for CLI output and logs, and
// SSHClientVersion identifies the tool to remote SSH daemons.
package version
