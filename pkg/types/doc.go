/*
Package types defines the shared domain model for Stackpilot: service
descriptors, health states, backup records, deployment attempts, and the
typed error taxonomy used to decide escalation across phase boundaries.

Descriptors are owned by static configuration and shared read-only by all
components. BackupRecords are owned by the backup engine and only ever
referenced, never mutated, by the orchestrator. DeploymentAttempts are
transient and never persisted.
*/
package types
