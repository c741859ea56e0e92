// Package constants provides shared constants used across the codebase.
package constants

import "time"

// File upload constants
const (
	// MaxUploadSize is the maximum accepted multipart body (64 MB)
	MaxUploadSize = 64 << 20

	// MaxUploadMemory is the part of a multipart form kept in memory
	MaxUploadMemory = 32 << 20
)

// HTTP server constants
const (
	// RequestTimeout bounds a single API request, including face detection
	RequestTimeout = 60 * time.Second

	// ShutdownTimeout is how long in-flight requests get to finish on shutdown
	ShutdownTimeout = 30 * time.Second

	// ReadTimeout covers reading uploads
	ReadTimeout = 30 * time.Second
)

// Matching constants
const (
	// DefaultIdentifyLimit is the number of ranked identities per face returned by identify
	DefaultIdentifyLimit = 5

	// MaxIdentifyLimit caps the limit accepted from clients
	MaxIdentifyLimit = 50
)

// Enrollment constants
const (
	// EnrollConcurrency is the number of users enrolled in parallel by the enroll command
	EnrollConcurrency = 4

	// EnrollInfoFile is the per-person metadata file read by the enroll command
	EnrollInfoFile = "info.yaml"
)
