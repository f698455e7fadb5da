/*
Package log provides structured logging for Stackpilot using zerolog.

The package wraps zerolog behind a small Init/With* surface: one global
logger configured at process start (level, console or JSON output) and
child-logger helpers that attach the fields operators filter on during an
update run (component, service, phase, backup_id).

Console output is the default because the binary is operator-driven; JSON
output is meant for the scheduled health-check invocation whose output
lands in a log shipper.
*/
package log
