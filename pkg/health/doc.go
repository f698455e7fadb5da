/*
Package health resolves per-service health into a five-state verdict.

The prober supports three strategies, matching what each service in the
stack can actually answer:

	readiness  in-container readiness command (pg_isready)
	ping       lightweight round-trip command (redis-cli ping)
	http       GET against a well-known health path, 2xx passes

A probe is a single attempt bounded by the descriptor's timeout; it
never retries and never returns an error. When the strategy check fails,
the prober consults the compose container state to tell apart a process
that is alive but failing (running-unhealthy), one still coming up
(starting), one that is gone (stopped), and the case where even the
state lookup failed (unknown). Retry and backoff belong to the caller —
see the rollout engine.
*/
package health
