// Package common holds helpers shared by several services.
//
// It detects the local operator (hostname/username) recorded with every run
// and guards a working directory against two concurrent runs with a marker file.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
