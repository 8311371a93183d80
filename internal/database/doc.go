// Package database provides PostgreSQL connection pool management for
// the instrument catalog.
package database
