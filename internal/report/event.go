package report

import (
	"context"
	"sync"

	"github.com/oshokin/installtool/internal/domain/release"
)

// Kind classifies an Event.
type Kind string

const (
	// KindArtifactClassified is emitted when an artifact is assigned to a host.
	KindArtifactClassified Kind = "artifact_classified"
	// KindArtifactUnassigned is emitted when an artifact matches no host.
	KindArtifactUnassigned Kind = "artifact_unassigned"
	// KindClassification summarizes a classification batch.
	KindClassification Kind = "classification"
	// KindChecksum is emitted for every verified artifact.
	KindChecksum Kind = "checksum"
	// KindVerification summarizes a verification run.
	KindVerification Kind = "verification"
	// KindSession is emitted when a remote session is opened or fails to open.
	KindSession Kind = "session"
	// KindRemoteCommand is emitted after every remote command.
	KindRemoteCommand Kind = "remote_command"
	// KindUpload is emitted after a batch transfer.
	KindUpload Kind = "upload"
	// KindHostOutcome is emitted when a host reaches a terminal state.
	KindHostOutcome Kind = "host_outcome"
)

// Event is one audit record. Fields irrelevant to a Kind stay zero.
type Event struct {
	// Kind tells which fields are meaningful.
	Kind Kind
	// RunID correlates every event of one invocation.
	RunID string
	// Host is the target host, if any.
	Host release.HostID
	// Artifact is the artifact name, if any.
	Artifact string
	// Command is the remote command as run, never containing secrets.
	Command string
	// Privileged marks commands run through sudo.
	Privileged bool
	// ExitStatus is the remote exit status.
	ExitStatus int
	// Stdout holds remote standard output lines.
	Stdout []string
	// Stderr holds remote standard error lines.
	Stderr []string
	// State is the host state for KindHostOutcome.
	State release.HostState
	// OK is the success flag of the recorded step.
	OK bool
	// Err is the failure, if any.
	Err error
	// Message is a short human-readable description.
	Message string
}

// Sink receives audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event)

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, event Event) {
	f(ctx, event)
}

// Discard drops every event.
//
//nolint:gochecknoglobals // Stateless sink.
var Discard Sink = SinkFunc(func(context.Context, Event) {})

// Multi fans events out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	active := make([]Sink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			active = append(active, sink)
		}
	}

	return SinkFunc(func(ctx context.Context, event Event) {
		for _, sink := range active {
			sink.Emit(ctx, event)
		}
	})
}

// WithRunID stamps runID on every event forwarded to sink.
func WithRunID(sink Sink, runID string) Sink {
	return SinkFunc(func(ctx context.Context, event Event) {
		event.RunID = runID
		sink.Emit(ctx, event)
	})
}

// OrDiscard returns sink, or Discard when sink is nil.
func OrDiscard(sink Sink) Sink {
	if sink == nil {
		return Discard
	}

	return sink
}

// Recorder keeps events in memory.
type Recorder struct {
	// mu guards events.
	mu sync.Mutex
	// events are kept in emission order.
	events []Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return new(Recorder)
}

// Emit stores event.
func (r *Recorder) Emit(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

// Events returns a copy of every stored event.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Event(nil), r.events...)
}

// OfKind returns stored events of kind k.
func (r *Recorder) OfKind(k Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Event
	for _, event := range r.events {
		if event.Kind == k {
			result = append(result, event)
		}
	}

	return result
}
