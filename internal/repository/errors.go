// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers to distinguish
// between different failure scenarios. Lookups of a missing row return
// sql.ErrNoRows unchanged.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as a refund for a deposit that was already
// refunded.
var ErrConflict = errors.New("conflict")

// ErrNoChange is returned by conditional updates that matched no row,
// typically because a concurrent transaction already moved the
// reservation out of the expected status.
var ErrNoChange = errors.New("no row changed")
