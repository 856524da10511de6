package db

import (
	"errors"
)

// ErrNotFound is returned when a key has no object in the bucket.
var ErrNotFound = errors.New("Object not found")

// ErrEtagConflict is returned when a conditional put or delete loses the
// race: the object's etag no longer matches the caller's expectation, or an
// IfMissing put found the key already present.
var ErrEtagConflict = errors.New("Etag mismatch")

// ErrBucketNotFound is returned when an operation names a bucket that was
// never created.
var ErrBucketNotFound = errors.New("Bucket not found")

// ErrBucketExists is returned when creating a bucket that already exists at
// an incompatible version.
var ErrBucketExists = errors.New("Bucket already exists")
