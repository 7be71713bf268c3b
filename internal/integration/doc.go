// Package integration holds end-to-end tests that drive the deploy workflow
// over real SSH sessions against in-process servers.
package integration
