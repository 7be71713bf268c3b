// Package installer wires discovery, classification, verification and
// deployment into the workflows exposed by the command line.
//
// Every workflow loads the settings, stamps a fresh run ID on every audit
// event and logs who started it. Deploy refuses to touch any host unless
// every discovered package verifies against the manifest and the operator
// accepted the pack list.
package installer
