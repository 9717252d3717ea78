// Package common defines sentinel errors shared by the retention service,
// its repositories and its operator surfaces. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal      = errors.New("internal error")
	ErrorInvalidInput  = errors.New("invalid input")
	ErrorArchiveConfig = errors.New("archival storage is not configured")

	// Archive payload errors. These abort a single restore and are never
	// retried automatically.
	ErrUnsupportedArchiveVersion = errors.New("unsupported archive version")
	ErrMalformedArchive          = errors.New("malformed archive payload")
	ErrChecksumMismatch          = errors.New("archive checksum mismatch")
	ErrProviderMismatch          = errors.New("archive stored with a different provider")

	// Tier errors.
	ErrUnknownTier       = errors.New("unknown retention tier")
	ErrTierNotBucketable = errors.New("tier has no bucket granularity")
)
