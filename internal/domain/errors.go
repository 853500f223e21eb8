package domain

import "errors"

var (
	// ErrStorageUnavailable means persistence could not be reached. The
	// operation was aborted with no partial writes; callers must surface it,
	// never degrade reads to an empty result.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrAlreadyInSession is returned by session creation when either user
	// already has an active session.
	ErrAlreadyInSession = errors.New("user is already in a session")

	// ErrNotInSession is returned when ending a session for a user who has
	// no active session. Nothing is mutated.
	ErrNotInSession = errors.New("user is not in a session")

	// ErrNoActivePartner is returned by the relay when a sender has no live
	// session partner.
	ErrNoActivePartner = errors.New("no active partner")

	// ErrDeliveryFailed means the transport could not deliver a payload.
	// Deliveries are best-effort; failures are logged, not retried.
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrInvalidAdminToken is returned by privileged operations when the
	// shared secret does not match. No state changes.
	ErrInvalidAdminToken = errors.New("invalid admin token")

	// ErrNoCandidate is returned by the matchmaker when every active post is
	// excluded for the viewer.
	ErrNoCandidate = errors.New("no candidate post available")
)
