// Package remote runs commands on and copies files to a target host over SSH.
//
// A Client owns one authenticated SSH connection. Plain commands run through
// an exec channel; privileged commands are wrapped in sudo and receive the
// password on stdin, so it never appears in a command line or a result.
// Uploads go over SFTP on the same connection.
package remote
