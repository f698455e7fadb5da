/*
Package install brings the identity-provider stack from a bare host to
fully running: prerequisite checks, secret generation, domain config,
image pull, staged startup with health waits, migrations, bucket
creation and portal bootstrap.

Every step is idempotent. Secrets merge into the existing env file
without overwriting keys, the domain config and bootstrap marker are
skipped once present, and bucket creation tolerates existing buckets.
Re-running install after a partial failure completes the remainder.
*/
package install
