// Package migrate runs each service's own schema-migration entry point
// in a fixed order, failing fast: once a step fails, later steps are
// never attempted.
package migrate
