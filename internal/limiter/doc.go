// Package limiter implements the per-upstream rate limiter.
//
// One limiter instance is shared by every worker of the same upstream.
// Acquire serializes callers: each queued caller's wait is computed against
// the state as it stands when that caller is served, not when it first
// asked. A cooldown set by OnThrottled dominates both the minimum
// inter-call interval and the rolling-window budget.
package limiter
