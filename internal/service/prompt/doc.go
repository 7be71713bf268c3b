// Package prompt asks the operator for logins and decisions on a terminal.
//
// Passwords are read without echo and kept in secret buffers. For
// unattended runs a password file can replace the interactive prompt; the
// usernames then come from the host profiles.
package prompt
