// Package sanitizer normalizes user supplied text before validation and
// storage.
//
// All functions are idempotent and never fail: unusable input comes back
// empty (or unchanged) and is left for the validator to reject.
//
// Normalization includes:
//   - Free text (notes, cancellation reasons): trim, collapse whitespace
//   - Session types: lowercase, non letters/digits become single underscores
//   - Timezones: trim, collapse repeated separators; case is preserved
//   - Identifiers: trim surrounding whitespace
package sanitizer
