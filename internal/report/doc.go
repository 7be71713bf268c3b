// Package report is the audit trail of a deployment run.
//
// Components emit Events to a Sink: one per classification decision, per
// checksum check, per remote command (with full output and exit status), per
// upload and per host outcome. LogSink writes them through the zap logger,
// Recorder keeps them in memory for the final summary and for tests.
package report
