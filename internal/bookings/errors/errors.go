package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	// ErrSlotTaken is raised by a storage uniqueness or exclusion backstop.
	ErrSlotTaken = errors.New("slot already taken by another booking")

	// ErrStaleSchedule means the provider schedule changed since it was read.
	ErrStaleSchedule = errors.New("provider schedule was modified concurrently")

	ErrVersionConflict = errors.New("booking was modified concurrently")
)
