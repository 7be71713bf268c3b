// Package logger wraps zap with the helpers installtool relies on:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level parsing for the --log-level flag,
//   - leveled convenience functions (Infof, ErrorKV, etc.).
//
// Services take a context and log through it, so a run ID or a host name
// attached once with WithKV follows every line emitted for that host.
package logger
