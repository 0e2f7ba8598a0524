// Package errors defines the sentinel errors surfaced by sshovel.
//
// Deep code never prints. It wraps one of these sentinels with context via
// fmt.Errorf("...: %w", ...) and returns it; the command layer matches with
// errors.Is and reports a single concise line on stderr.
package errors
