// Package httputil provides HTTP utilities shared by acquisition sources.
//
// # Retry
//
// [Retry] re-runs an operation that failed with a transient error:
//
//   - Network errors (connection reset, timeouts)
//   - 5xx server errors
//
// Callers mark transient failures with [Retryable]; anything else is
// returned immediately, so a 404 or a page that failed to parse is never
// retried.
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable(err)
//	    }
//	    ...
//	})
//
// # Defaults
//
//   - Attempts: 3
//   - Initial delay: 1 second, doubling after every failed attempt
//
// Cancellation of ctx aborts the wait between attempts.
package httputil
