// Package httputil provides the retry layer for calls to the
// generation service.
//
// Retry lives here, at the collaborator boundary, deliberately outside
// the playback core: only errors wrapped in [RetryableError] (network
// failures, 5xx responses) are retried, and the core itself never
// retries. Result caching is a separate concern handled by pkg/cache.
package httputil
