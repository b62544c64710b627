package errors

import "errors"

var (
	ErrNotFound = errors.New("provider not found")

	ErrAlreadyExists = errors.New("provider already exists")
)
