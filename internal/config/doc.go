// Package config defines installtool settings and helpers to load, validate
// and save them in YAML format.
//
// The hosts section is the source of the manifest registry: exactly three
// entries (RCC, DCC, BCC) with an SSH address and the expected package-name
// prefixes. Other sections point at the checksum manifest, describe where to
// look for packages and tune the SSH transport.
package config
