package contracts

import "errors"

// Error taxonomy. Expected steady states (no score yet, partial portfolio
// coverage) are represented as statuses on result values, not as errors;
// only the conditions below cross component boundaries as errors.
var (
	// ErrInvalidDocument marks malformed input rejected at ingestion.
	// Caller's fault; the engine never retries it.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrStaleBenchmark marks a sector or portfolio recompute that raced
	// with a newer write and was discarded. Logged, not retried; the next
	// dirty sweep corrects it.
	ErrStaleBenchmark = errors.New("stale benchmark discarded")

	// ErrNotFound marks a missing row on point lookup
	ErrNotFound = errors.New("not found")

	// ErrInvalidHoldings marks a holdings snapshot whose weights are out
	// of range or do not sum to 1
	ErrInvalidHoldings = errors.New("invalid holdings")
)
