/*
errors.go - Centralized error types for the metrics engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As; structured errors carry the
  context a consumer needs to act.

ERROR CATEGORIES:
  1. Store errors - the store cannot be opened or a query fails; fatal to
     the calling engine invocation, never retried inside the core
  2. Configuration errors - params outside their valid domain; raised
     before any computation runs
  3. Data conditions - expected states of the data (a missing reference
     price, an undefined ratio); reported, not thrown away

USAGE:
  if errors.Is(err, metrics.ErrMissingReferencePrice) {
      var missing *metrics.MissingReferencePriceError
      errors.As(err, &missing)
      // missing.Combos lists the skipped (sku, store, competitor) keys
  }

SEE ALSO:
  - store.go: Store contract that returns the store errors
  - params.go: Validate() produces ConfigurationError
*/
package metrics

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStoreUnavailable is returned when the underlying store file or
	// connection cannot be opened.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrQuery is returned for a malformed query or a reference to an
	// unknown relation. Fatal to the invocation; no partial result.
	ErrQuery = errors.New("query failed")

	// ErrInvalidConfiguration is returned when engine params fall outside
	// their valid domain. No computation runs with invalid config.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrMissingReferencePrice is returned when the reference brand has no
	// priced observation for a (sku, store, window) combination. This is an
	// expected data condition: valid rows are still produced, the affected
	// combinations are skipped and reported.
	ErrMissingReferencePrice = errors.New("missing reference price")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// QueryError wraps a store query failure with the relation involved.
type QueryError struct {
	Relation string
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query on %s: %v", e.Relation, e.Err)
}

func (e *QueryError) Unwrap() error { return ErrQuery }

// ConfigurationError identifies which parameter was invalid and why.
type ConfigurationError struct {
	Param  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Param, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrInvalidConfiguration }

// MissingReferencePriceError lists the combinations the price index engine
// skipped because no reference-brand price existed in the window.
type MissingReferencePriceError struct {
	Combos []PriceRefKey
}

func (e *MissingReferencePriceError) Error() string {
	return fmt.Sprintf("missing reference price for %d sku/store/competitor combination(s)", len(e.Combos))
}

func (e *MissingReferencePriceError) Unwrap() error { return ErrMissingReferencePrice }
