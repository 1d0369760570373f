package storefront

import "errors"

// ErrRateLimited signals the catalog API's degraded "no data" response under
// rate pressure. The gateway retries it a bounded number of times; once it
// propagates to a caller, the whole run must be abandoned.
var ErrRateLimited = errors.New("storefront rate budget exhausted")

// ErrMalformed signals a structurally unexpected response: the requested id
// key is missing, or a nominally successful entry carries no data field.
// This indicates an API contract change and is never retried.
var ErrMalformed = errors.New("unexpected storefront response format")
