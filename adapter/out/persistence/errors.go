// Package persistence provides database adapters implementing outbound ports.
package persistence

import "errors"

// ErrNotFound is returned by adapter lookups when no row matches.
var ErrNotFound = errors.New("persistence: not found")
