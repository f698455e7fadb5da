// Package adminapi is a typed client for the object store's admin
// surface: the HTTP readiness endpoint plus the mc binary inside the
// container, consumed as JSON rather than scraped text.
package adminapi
