package release

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// HostID identifies one of the three deployment targets.
type HostID string

const (
	// HostRCC is the reconstruction computer.
	HostRCC HostID = "RCC"
	// HostDCC is the disk/acquisition controller.
	HostDCC HostID = "DCC"
	// HostBCC is the base controller.
	HostBCC HostID = "BCC"
)

// HostOrder is the fixed classification priority and rollout order.
//
//nolint:gochecknoglobals // Fixed topology shared by classifier and deployer.
var HostOrder = []HostID{HostRCC, HostDCC, HostBCC}

// errUnknownHost is returned by ParseHostID for names outside HostOrder.
var errUnknownHost = errors.New("unknown host")

// ParseHostID converts a case-insensitive host name to a HostID.
func ParseHostID(name string) (HostID, error) {
	id := HostID(strings.ToUpper(strings.TrimSpace(name)))
	if !slices.Contains(HostOrder, id) {
		return "", fmt.Errorf("%q: %w (want RCC, DCC or BCC)", name, errUnknownHost)
	}

	return id, nil
}

// HostProfile describes one deployment target and the packages it expects.
type HostProfile struct {
	// ID is the host identity.
	ID HostID
	// Address is the SSH endpoint in host:port form.
	Address string
	// Username is the default login suggested when credentials are requested.
	Username string
	// Prefixes lists expected package-name prefixes, one per package.
	Prefixes []string
}

// Clone returns a deep copy of the profile.
func (p HostProfile) Clone() HostProfile {
	p.Prefixes = slices.Clone(p.Prefixes)

	return p
}

// Expected returns how many packages the host must receive.
func (p HostProfile) Expected() int {
	return len(p.Prefixes)
}
