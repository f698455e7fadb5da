// Package catalog persists the index of backup records in a local
// bbolt database so rollback can pick the newest verified archive
// without re-reading every archive on disk.
package catalog
