package types

import "errors"

// Operation outcomes. Every controller and view failure is one of these,
// returned to the caller and mapped to a wire status; nothing is thrown
// across the network boundary.
var (
	// ErrNotFound - a referenced user, conversation or message is absent.
	ErrNotFound = errors.New("not found")
	// ErrIdInUse - an explicit or generated id collides with an existing
	// entity. Defensive: the generator's entropy makes this effectively
	// impossible for generated ids.
	ErrIdInUse = errors.New("id already in use")
	// ErrAlreadyCurrentSetting - the requested change is an idempotent no-op.
	ErrAlreadyCurrentSetting = errors.New("already the current setting")
	// ErrInsufficientPermission - the actor's rank is too low for the change.
	ErrInsufficientPermission = errors.New("insufficient permission")
	// ErrSelfChange - an actor tried to change its own permission level.
	ErrSelfChange = errors.New("cannot change own permission level")
	// ErrNotInterested - a status inquiry about a target outside the
	// requester's interest set.
	ErrNotInterested = errors.New("target not in interests")
	// ErrMalformed - truncated or malformed wire or record data.
	ErrMalformed = errors.New("malformed data")
)
