// Package discovery finds installable packages on local storage.
package discovery
