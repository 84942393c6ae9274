// Package httputil provides the HTTP transport used to talk to graph
// backends.
//
// # Overview
//
//   - [Client]: JSON GET and POST with default headers and status mapping
//   - [Retry]: automatic retry with exponential backoff
//
// # Status mapping
//
// Responses are mapped to coded errors from pkg/errors:
//
//   - 2xx: success
//   - 404: NOT_FOUND
//   - 5xx: NETWORK_ERROR, retried
//   - other: NETWORK_ERROR
//
// Connection failures are retried as NETWORK_ERROR; deadline and timeout
// failures surface as TIMEOUT without a retry.
//
// # Retry
//
// Only errors wrapped with [Retryable] are retried. The default policy is
// three attempts starting at one second, doubling each time:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    return fetch()
//	})
//
// Request and response events are reported to the registered
// observability HTTP hooks.
package httputil
