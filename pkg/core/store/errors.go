package store

import "errors"

// ErrNotFound reports that no row exists for the requested ticker.
// Callers detect it with errors.Is.
var ErrNotFound = errors.New("not found in store")
