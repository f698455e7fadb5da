/*
Package backup produces, verifies, restores, and prunes point-in-time
backups of the identity-provider stack.

One run captures four components into a single compressed archive:

	database/dump.sql.gz    logical dump, fatal when empty or failing
	cache/dump.rdb          synchronous snapshot, warning when missing
	objectstore/...         bucket mirror, warning when empty or missing
	config/...              compose + secrets files, copied verbatim

A manifest enumerates every file with its size and a sha256 computed
from the source tree before compression, so verification is not limited
to the archive listing. A BackupRecord is either fully materialized —
archive present, listing matches the manifest — or the run fails and no
valid record exists; there are no partially valid backups. Retention
pruning runs after every invocation, independent of that run's outcome.

Backups are taken online. The dump and the mirror are therefore not
mutually transaction-consistent; this is documented behavior.
*/
package backup
