//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"
)

// Operator identifies who started a run and from where.
type Operator struct {
	// Hostname is the local machine name.
	Hostname string
	// Username is the local account name.
	Username string
}

// String formats the operator as user@host.
func (o Operator) String() string {
	return o.Username + "@" + o.Hostname
}

// DetectOperator gathers host and user information for the audit trail.
func DetectOperator() (Operator, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Operator{}, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return Operator{}, fmt.Errorf("current user: %w", err)
	}

	return Operator{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}
