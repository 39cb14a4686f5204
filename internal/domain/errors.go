package domain

import "errors"

var (
	// ErrInvalidAccount is returned by a ledger when an account is unknown or malformed.
	// It is permanent: the same call will never succeed.
	ErrInvalidAccount = errors.New("invalid account")

	// ErrTransient marks infrastructure failures (network, ledger unavailable) that are safe to retry.
	ErrTransient = errors.New("transient ledger failure")

	// ErrInvalidTransfer is returned when a TransferRequest fails validation
	ErrInvalidTransfer = errors.New("invalid transfer request")

	// ErrSessionNotFound is returned when no session record exists for a session id
	ErrSessionNotFound = errors.New("session not found")

	// ErrCheckpointNotFound is returned when no saga checkpoint exists for a session id
	ErrCheckpointNotFound = errors.New("saga checkpoint not found")

	// ErrTransferNotFound is returned when no transfer record exists for a session id
	ErrTransferNotFound = errors.New("transfer not found")
)
