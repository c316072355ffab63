package domain

import "errors"

var (
	// ErrListingNotFound indicates the requested listing does not exist
	// (or has already been removed from the live catalog).
	ErrListingNotFound = errors.New("listing not found")
	// ErrHistoryNotFound indicates the requested history record does not exist.
	ErrHistoryNotFound = errors.New("history record not found")
	// ErrForbidden indicates the user is not authorized to perform the action.
	ErrForbidden = errors.New("action forbidden")
	// ErrInvalidInput indicates malformed input data (id, date, filter).
	ErrInvalidInput = errors.New("invalid input data")
	// ErrInvalidTransition indicates a disallowed status change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyArchived indicates a concurrent archive won the conditional
	// delete; the losing caller treats this as a benign no-op.
	ErrAlreadyArchived = errors.New("listing already archived")
	// ErrTransaction indicates the archive transaction failed and was rolled
	// back; the listing remains fully live.
	ErrTransaction = errors.New("archive transaction failed")
	// ErrRepository indicates a generic data persistence error.
	ErrRepository = errors.New("repository error")
)
