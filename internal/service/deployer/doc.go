// Package deployer pushes classified artifacts to their hosts and installs them.
//
// Hosts are processed one at a time in registry order. For each host the
// deployer asks for credentials, opens a session, creates the dated staging
// directory, uploads the host's artifacts in one batch and installs them one
// by one with elevated privileges. Every install is attempted even after an
// earlier one fails. When a host fails, the run stops unless the Confirmer
// allows it to continue; hosts not reached are reported as skipped.
package deployer
