// Package logger provides leveled logging for sshovel commands.
//
// Logging behavior is controlled by two flags:
//
//   - --verbose: shows info and warning messages
//   - --debug: shows all messages including debug details
//
// Without flags, only critical warnings and errors are shown. Everything is
// written to stderr, since stdout is part of the encryption pipeline.
//
// Commands create a logger in their PersistentPreRun and pass it down to
// internal functions.
package logger
