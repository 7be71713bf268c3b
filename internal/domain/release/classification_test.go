package release

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestClassificationResult_Err describes count mismatches and unassigned artifacts.
func TestClassificationResult_Err(t *testing.T) {
	t.Parallel()

	profiles := testProfiles()
	result := &ClassificationResult{
		Groups: []HostGroup{
			{Host: profiles[0], Artifacts: []Artifact{{Name: "ckct-DataHandler-1.rpm"}}},
			{Host: profiles[1], Artifacts: []Artifact{{Name: "ckct-Acquisition-1.rpm"}}},
			{Host: profiles[2]},
		},
		Unassigned: []Artifact{{Name: "unknown-1.rpm"}},
	}

	err := result.Err()
	require.ErrorIs(t, err, ErrClassificationIncomplete)
	require.ErrorContains(t, err, "RCC has 1 of 2 packages")
	require.ErrorContains(t, err, "BCC has 0 of 2 packages")
	require.ErrorContains(t, err, "unassigned: unknown-1.rpm")
	require.NotContains(t, err.Error(), "DCC")

	require.Equal(t, []string{"ckct-DataHandler-1.rpm", "ckct-Acquisition-1.rpm"}, Names(result.Assigned()))

	group, ok := result.Group(HostDCC)
	require.True(t, ok)
	require.True(t, group.CountMatches())

	result.Complete = true
	require.NoError(t, result.Err())
}

// TestClassificationResult_Restrict keeps selected hosts only.
func TestClassificationResult_Restrict(t *testing.T) {
	t.Parallel()

	profiles := testProfiles()
	result := &ClassificationResult{
		Groups: []HostGroup{
			{Host: profiles[0], Artifacts: []Artifact{{Name: "ckct-DataHandler-1.rpm"}}},
			{Host: profiles[1], Artifacts: []Artifact{{Name: "ckct-Acquisition-1.rpm"}}},
			{Host: profiles[2]},
		},
	}

	dccOnly := result.Restrict([]HostID{HostDCC})
	require.True(t, dccOnly.Complete)
	require.NoError(t, dccOnly.Err())
	require.Len(t, dccOnly.Groups, 1)

	_, ok := dccOnly.Group(HostRCC)
	require.False(t, ok)

	dccOnly.Groups[0].Artifacts[0].Name = "mutated"
	require.Equal(t, "ckct-Acquisition-1.rpm", result.Groups[1].Artifacts[0].Name)

	withBCC := result.Restrict([]HostID{HostDCC, HostBCC})
	require.False(t, withBCC.Complete)
	require.ErrorContains(t, withBCC.Err(), "BCC has 0 of 2 packages")

	result.Unassigned = []Artifact{{Name: "stray.rpm"}}
	require.False(t, result.Restrict([]HostID{HostDCC}).Complete)
}
