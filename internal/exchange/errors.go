package exchange

import "errors"

var (
	// ErrIdenticalTokens is returned when a pool is requested for a token and itself.
	ErrIdenticalTokens = errors.New("identical tokens")
	// ErrPoolExists is returned when a pool for the pair is already registered.
	ErrPoolExists = errors.New("pool already exists")
	// ErrDuplicateName is returned when a token name is already taken.
	ErrDuplicateName = errors.New("duplicate token name")
	// ErrNotFound is returned for unknown pool or token lookups.
	ErrNotFound = errors.New("not found")
	// ErrNotOwner is returned when a restricted action is attempted by a non-owner.
	ErrNotOwner = errors.New("not owner")
	// ErrPoolNotEmpty is returned when removing a pool that still holds reserves.
	ErrPoolNotEmpty = errors.New("pool not empty")
)
