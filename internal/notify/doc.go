// Package notify delivers user-facing notifications.
//
// Service sits in front of a single Sink and decouples callers from
// delivery: Notify enqueues and returns, a supervised worker drains the
// queue under a rate limit, identical messages inside the dedup window are
// dropped, and failed sends are retried with backoff. Permission is asked
// of the sink at most once; a denial sticks for the life of the process.
package notify
