package release

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrClassificationIncomplete reports a count mismatch or unassigned artifacts.
// It is never fatal by itself; the operator decides whether to go on.
var ErrClassificationIncomplete = errors.New("classification incomplete")

// HostGroup is the ordered set of artifacts assigned to one host.
type HostGroup struct {
	// Host is the owning profile.
	Host HostProfile
	// Artifacts keeps the relative input order.
	Artifacts []Artifact
}

// CountMatches reports whether the group holds exactly the expected number of packages.
func (g HostGroup) CountMatches() bool {
	return len(g.Artifacts) == g.Host.Expected()
}

// ClassificationResult partitions a discovery batch across the three hosts.
type ClassificationResult struct {
	// Groups are in rollout order RCC, DCC, BCC.
	Groups []HostGroup
	// Unassigned lists artifacts matching no profile, in input order.
	Unassigned []Artifact
	// Complete is true iff every group count matches and nothing is unassigned.
	Complete bool
}

// Group returns the group for id.
func (r *ClassificationResult) Group(id HostID) (HostGroup, bool) {
	for _, group := range r.Groups {
		if group.Host.ID == id {
			return group, true
		}
	}

	return HostGroup{}, false
}

// Assigned returns every assigned artifact in rollout order.
func (r *ClassificationResult) Assigned() []Artifact {
	var result []Artifact
	for _, group := range r.Groups {
		result = append(result, group.Artifacts...)
	}

	return result
}

// Err describes why the result is incomplete, or returns nil.
func (r *ClassificationResult) Err() error {
	if r.Complete {
		return nil
	}

	problems := make([]string, 0, len(r.Groups)+1)
	for _, group := range r.Groups {
		if !group.CountMatches() {
			problems = append(problems, fmt.Sprintf("%s has %d of %d packages",
				group.Host.ID, len(group.Artifacts), group.Host.Expected()))
		}
	}

	if len(r.Unassigned) > 0 {
		problems = append(problems, fmt.Sprintf("unassigned: %s", strings.Join(Names(r.Unassigned), ", ")))
	}

	return fmt.Errorf("%s: %w", strings.Join(problems, "; "), ErrClassificationIncomplete)
}

// Restrict returns a copy holding only the groups of hosts. Artifacts of other
// hosts are dropped; completeness is re-evaluated over the kept groups and the
// unassigned artifacts.
func (r *ClassificationResult) Restrict(hosts []HostID) *ClassificationResult {
	restricted := &ClassificationResult{
		Unassigned: slices.Clone(r.Unassigned),
	}

	for _, group := range r.Groups {
		if slices.Contains(hosts, group.Host.ID) {
			restricted.Groups = append(restricted.Groups, HostGroup{
				Host:      group.Host.Clone(),
				Artifacts: slices.Clone(group.Artifacts),
			})
		}
	}

	restricted.Complete = len(restricted.Unassigned) == 0
	for _, group := range restricted.Groups {
		if !group.CountMatches() {
			restricted.Complete = false
		}
	}

	return restricted
}
