package release

import (
	"errors"
	"fmt"
	"slices"
)

// HostState is a step of the per-host deployment state machine.
type HostState string

const (
	// StateIdle is the state before anything was attempted.
	StateIdle HostState = "idle"
	// StateConnected means a remote session is open.
	StateConnected HostState = "connected"
	// StateDirectoryEnsured means staging directory creation was attempted.
	StateDirectoryEnsured HostState = "directory_ensured"
	// StateUploaded means every artifact reached the staging directory.
	StateUploaded HostState = "uploaded"
	// StateInstalling means install commands are being dispatched.
	StateInstalling HostState = "installing"
	// StateDone means every artifact installed successfully.
	StateDone HostState = "done"
	// StateFailed means the host step ended with at least one failure.
	StateFailed HostState = "failed"
	// StateSkipped means the host was not attempted.
	StateSkipped HostState = "skipped"
)

// errInvalidTransition is returned for a state change the machine does not allow.
var errInvalidTransition = errors.New("invalid host state transition")

//nolint:gochecknoglobals // Static transition table.
var allowedTransitions = map[HostState][]HostState{
	StateIdle:             {StateConnected, StateFailed, StateSkipped},
	StateConnected:        {StateDirectoryEnsured, StateFailed},
	StateDirectoryEnsured: {StateUploaded, StateFailed},
	StateUploaded:         {StateInstalling, StateDone, StateFailed},
	StateInstalling:       {StateInstalling, StateDone, StateFailed},
}

// Terminal reports whether no further transitions are possible.
func (s HostState) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateSkipped
}

// DeploymentOutcome is the per-host record of a single deployment run.
type DeploymentOutcome struct {
	// Host is the target identity.
	Host HostID
	// DirectoryCreated reports whether the staging mkdir exited with zero.
	DirectoryCreated bool
	// Uploaded reports whether the batch transfer completed.
	Uploaded bool
	// Artifacts lists artifact names in upload and install order.
	Artifacts []string
	// Installed maps artifact name to install success; attempted artifacts only.
	Installed map[string]bool
	// Failures keeps every recorded problem in the order it happened.
	Failures []error
}

// Succeeded is true when the upload completed and every artifact installed.
func (o *DeploymentOutcome) Succeeded() bool {
	if !o.Uploaded || len(o.Installed) != len(o.Artifacts) {
		return false
	}

	for _, name := range o.Artifacts {
		if !o.Installed[name] {
			return false
		}
	}

	return true
}

// Err joins every recorded failure.
func (o *DeploymentOutcome) Err() error {
	return errors.Join(o.Failures...)
}

// Transition is one recorded state change.
type Transition struct {
	// From is the state left.
	From HostState
	// To is the state entered.
	To HostState
	// Index is the artifact position for StateInstalling, -1 otherwise.
	Index int
}

// HostRun is the explicit state machine for one host in one run.
type HostRun struct {
	// Host is the target profile.
	Host HostProfile
	// State is the current state.
	State HostState
	// InstallIndex is the artifact being installed while in StateInstalling.
	InstallIndex int
	// SkipReason explains StateSkipped.
	SkipReason string
	// Outcome accumulates results.
	Outcome *DeploymentOutcome
	// History lists every transition taken.
	History []Transition
}

// NewHostRun starts an idle run for profile with the given artifacts.
func NewHostRun(profile HostProfile, artifacts []Artifact) *HostRun {
	return &HostRun{
		Host:         profile.Clone(),
		State:        StateIdle,
		InstallIndex: -1,
		Outcome: &DeploymentOutcome{
			Host:      profile.ID,
			Artifacts: Names(artifacts),
			Installed: make(map[string]bool, len(artifacts)),
		},
	}
}

// Advance moves to a non-installing state.
func (r *HostRun) Advance(to HostState) error {
	return r.transition(to, -1)
}

// Installing moves to StateInstalling for the artifact at index.
func (r *HostRun) Installing(index int) error {
	if index < 0 || index >= len(r.Outcome.Artifacts) {
		return fmt.Errorf("install index %d out of range: %w", index, errInvalidTransition)
	}

	return r.transition(StateInstalling, index)
}

// Record appends a failure without changing state.
func (r *HostRun) Record(err error) {
	if err != nil {
		r.Outcome.Failures = append(r.Outcome.Failures, err)
	}
}

// Fail records err and moves to StateFailed.
func (r *HostRun) Fail(err error) {
	r.Record(err)

	if !r.State.Terminal() {
		_ = r.transition(StateFailed, -1)
	}
}

// Skip moves an idle run to StateSkipped.
func (r *HostRun) Skip(reason string) error {
	if err := r.transition(StateSkipped, -1); err != nil {
		return err
	}

	r.SkipReason = reason

	return nil
}

// Finish moves to StateDone or StateFailed according to the outcome.
func (r *HostRun) Finish() {
	if r.State.Terminal() {
		return
	}

	if r.Outcome.Succeeded() {
		_ = r.transition(StateDone, -1)

		return
	}

	_ = r.transition(StateFailed, -1)
}

// Succeeded reports a finished run whose outcome succeeded.
func (r *HostRun) Succeeded() bool {
	return r.State == StateDone
}

func (r *HostRun) transition(to HostState, index int) error {
	if !slices.Contains(allowedTransitions[r.State], to) {
		return fmt.Errorf("%s: %s -> %s: %w", r.Host.ID, r.State, to, errInvalidTransition)
	}

	if to == StateInstalling && r.State == StateInstalling && index <= r.InstallIndex {
		return fmt.Errorf("%s: install index %d after %d: %w", r.Host.ID, index, r.InstallIndex, errInvalidTransition)
	}

	r.History = append(r.History, Transition{From: r.State, To: to, Index: index})
	r.State = to
	r.InstallIndex = index

	return nil
}
