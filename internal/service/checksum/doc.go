// Package checksum verifies artifacts against a trusted MD5 manifest.
//
// The manifest format is fixed by the tools that produce it: one record per
// line, framed by pipes, with the digest in the first field and the filename
// in the third:
//
//	| 0cc175b9c0f1b6a831c399e269772661 | - | pkg-a.rpm |
//
// Lines that do not start and end with a pipe are skipped.
package checksum
