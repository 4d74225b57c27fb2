// Package id provides unique identifier generation for jobs.
package id

import "github.com/google/uuid"

// Generate creates a new opaque job ID.
// IDs are random UUIDv4 strings and are never reused.
func Generate() string {
	return uuid.NewString()
}
