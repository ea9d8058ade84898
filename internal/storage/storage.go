package storage

import "errors"

var (
	ErrStoreUnavailable = errors.New("image store unavailable")
	ErrFileNotFound     = errors.New("file not found")
	ErrInvalidPath      = errors.New("invalid path")
)

var (
	ErrSelectionNotFound = errors.New("selection not found")
)
