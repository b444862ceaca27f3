package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidTransition  = errors.New("invalid job state transition")
	ErrJobNotResumable    = errors.New("job is not in a resumable state")
	ErrJobAlreadyRunning  = errors.New("job is already being processed")
	ErrJobSetup           = errors.New("job setup failed")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
