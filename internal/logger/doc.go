// Package logger wraps zap for the whole module:
//   - a global sugared logger with a console encoder on stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and a shared atomic level,
//   - leveled convenience functions (Infof, ErrorKV, etc.).
//
// Services accept a context and pull the logger out of it, so a run id or a
// component name attached once shows up on every entry below that point.
package logger
