// Package report folds per-service health states and auxiliary
// environment checks (disk usage, expected volumes, recent error logs)
// into a single pass/fail verdict with an operator-facing rendering.
package report
