package poll

import "errors"

var (
	// ErrInvalidArguments indicates bad poll creation input.
	ErrInvalidArguments = errors.New("invalid poll arguments")
	// ErrInvalidOption indicates a vote for a nonexistent option.
	ErrInvalidOption = errors.New("invalid option index")
	// ErrPollNotFound indicates an unknown poll identifier.
	ErrPollNotFound = errors.New("poll not found")
	// ErrPollClosed indicates the poll no longer accepts votes.
	ErrPollClosed = errors.New("poll closed")
	// ErrPollExpired indicates the poll expired before the vote landed.
	ErrPollExpired = errors.New("poll expired")
	// ErrAlreadyClosed indicates a close on an already closed poll.
	ErrAlreadyClosed = errors.New("poll already closed")
	// ErrNotAuthorized indicates a close attempt by someone other than the creator.
	ErrNotAuthorized = errors.New("not authorized to close poll")
	// ErrIdentifierCollision indicates a generated identifier was already taken.
	ErrIdentifierCollision = errors.New("poll identifier collision")
	// ErrCreationFailed indicates identifier generation failed after retries.
	ErrCreationFailed = errors.New("poll creation failed")
)
