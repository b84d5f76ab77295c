package repository

import "errors"

// Sentinel kinds for run store errors.
var (
	ErrNotFound  = errors.New("run not found")
	ErrDuplicate = errors.New("run already exists")
	ErrCapacity  = errors.New("run store is full")
	ErrInvalid   = errors.New("invalid run")
)
