package progress

import "errors"

var (
	// ErrStorageUnavailable wraps failures reported by the Storage backend.
	ErrStorageUnavailable = errors.New("progress: storage unavailable")
	// ErrCorruptSnapshot marks persisted data that could not be decoded.
	ErrCorruptSnapshot = errors.New("progress: corrupt snapshot")
)
