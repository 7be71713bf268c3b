package release

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPrefixCollision is returned when one artifact name could match two host profiles.
	ErrPrefixCollision = errors.New("package prefix collision")
	// errBadTopology is returned when the profiles are not exactly RCC, DCC, BCC in order.
	errBadTopology = errors.New("host profiles must be RCC, DCC, BCC in this order")
	// errEmptyPrefix is returned for a blank prefix, which would match every artifact.
	errEmptyPrefix = errors.New("empty package prefix")
)

// prefixEntry binds one expected prefix to its owning host.
type prefixEntry struct {
	prefix string
	host   HostID
}

// Registry is the immutable set of host profiles plus a single prefix index.
type Registry struct {
	// profiles are kept in rollout order.
	profiles []HostProfile
	// index lists every prefix in priority order RCC, DCC, BCC.
	index []prefixEntry
}

// NewRegistry validates profiles and builds the prefix index.
// It fails when a prefix of one host equals, extends or is extended by a
// prefix of another host, since first-match-wins would then hide a package.
func NewRegistry(profiles []HostProfile) (*Registry, error) {
	if len(profiles) != len(HostOrder) {
		return nil, errBadTopology
	}

	registry := &Registry{
		profiles: make([]HostProfile, 0, len(profiles)),
	}

	for i, profile := range profiles {
		if profile.ID != HostOrder[i] {
			return nil, fmt.Errorf("position %d is %q: %w", i, profile.ID, errBadTopology)
		}

		for _, prefix := range profile.Prefixes {
			if strings.TrimSpace(prefix) == "" {
				return nil, fmt.Errorf("host %s: %w", profile.ID, errEmptyPrefix)
			}

			for _, entry := range registry.index {
				if entry.host == profile.ID {
					continue
				}

				if strings.HasPrefix(prefix, entry.prefix) || strings.HasPrefix(entry.prefix, prefix) {
					return nil, fmt.Errorf("%s %q vs %s %q: %w",
						entry.host, entry.prefix, profile.ID, prefix, ErrPrefixCollision)
				}
			}

			registry.index = append(registry.index, prefixEntry{prefix: prefix, host: profile.ID})
		}

		registry.profiles = append(registry.profiles, profile.Clone())
	}

	return registry, nil
}

// Profiles returns copies of the profiles in rollout order.
func (r *Registry) Profiles() []HostProfile {
	result := make([]HostProfile, 0, len(r.profiles))
	for _, profile := range r.profiles {
		result = append(result, profile.Clone())
	}

	return result
}

// Profile returns the profile for id.
func (r *Registry) Profile(id HostID) (HostProfile, bool) {
	for _, profile := range r.profiles {
		if profile.ID == id {
			return profile.Clone(), true
		}
	}

	return HostProfile{}, false
}

// Match returns the host owning the first prefix that name starts with.
func (r *Registry) Match(name string) (HostID, string, bool) {
	for _, entry := range r.index {
		if strings.HasPrefix(name, entry.prefix) {
			return entry.host, entry.prefix, true
		}
	}

	return "", "", false
}
