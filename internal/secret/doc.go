// Package secret holds host passwords for the few seconds they are needed.
//
// On Linux a Buffer lives in an anonymous mmap region outside the Go heap,
// locked into RAM and excluded from core dumps. Elsewhere it falls back to a
// heap slice. In both cases Close zeroes the bytes, so the deployer closes
// each host's password as soon as that host's step is over.
package secret
