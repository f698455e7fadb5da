/*
Package compose wraps the Docker Compose CLI behind a typed Runner
interface.

Every invocation carries a context deadline so a wedged docker daemon
cannot hang the process, and failures surface as external-command errors
with the stderr tail attached. Container state comes from
`ps --format json` decoded into typed rows rather than scraped text, so
callers branch on fields, not on output layout.
*/
package compose
