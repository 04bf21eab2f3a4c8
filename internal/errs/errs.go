// Package errs defines the sentinel error taxonomy shared by the
// scraping pipeline and ranking engine (spec.md §7), so that callers
// up the stack can branch on errors.Is instead of string matching.
package errs

import "errors"

var (
	// ErrUnknownDivision means the division key was not found in the
	// Division Registry. Fatal for the run.
	ErrUnknownDivision = errors.New("unknown division")

	// ErrEmptyUpstream means Stage 1 returned zero roster rows. Fatal
	// for the run; there is no flag to override it.
	ErrEmptyUpstream = errors.New("empty upstream roster")

	// ErrTransientHTTP covers 5xx, timeouts, and connection resets.
	// Retriable with exponential backoff.
	ErrTransientHTTP = errors.New("transient upstream error")

	// ErrRateLimited covers HTTP 429 or equivalent. Retriable with
	// additional backoff.
	ErrRateLimited = errors.New("rate limited by upstream")

	// ErrProfileNotFound means the profile search yielded no
	// candidate above the acceptance threshold. Non-fatal.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrMatchSchemaInvalid means an upstream match row was missing a
	// required field or had a non-numeric score. Non-fatal, the row
	// is dropped.
	ErrMatchSchemaInvalid = errors.New("match schema invalid")

	// ErrThresholdExceeded means the fraction of failed teams in a
	// scrape run exceeded the configured limit. Fatal; partial output
	// is preserved.
	ErrThresholdExceeded = errors.New("failure threshold exceeded")

	// ErrIO covers local read/write failures. Fatal.
	ErrIO = errors.New("io error")

	// ErrConvergence is not a failure: it signals the SOS solver hit
	// the iteration cap without meeting the delta threshold. Reported
	// in the engine summary, non-fatal.
	ErrConvergence = errors.New("convergence not reached within iteration cap")

	// ErrEmptyName is returned by the normalizer/matcher for
	// whitespace-only or empty raw team names.
	ErrEmptyName = errors.New("empty team name")
)
