// Package release contains the core domain types of a deployment run.
//
// It defines the Artifact found on local storage, the three HostProfiles and
// the Registry that maps package-name prefixes to them, the
// ClassificationResult produced by the classifier and the per-host HostRun
// state machine whose terminal record is a DeploymentOutcome.
package release
