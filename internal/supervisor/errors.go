package supervisor

import "errors"

// Errors returned by the registry and the launch path.
var (
	// ErrDuplicateName is returned when a configured name already exists.
	// Configure handling logs it and moves on to the next entry.
	ErrDuplicateName = errors.New("game name already configured")

	// ErrUnknownGame is returned when a launch names a game that was never configured.
	ErrUnknownGame = errors.New("unknown game")

	// ErrEmptyCommand is returned when a configured command has no tokens.
	ErrEmptyCommand = errors.New("empty command")

	// ErrSpawnFailed is returned when the child process could not be created.
	ErrSpawnFailed = errors.New("spawn failed")

	// ErrInvalidMessage is returned for nil or unsupported messages.
	ErrInvalidMessage = errors.New("invalid message")
)
