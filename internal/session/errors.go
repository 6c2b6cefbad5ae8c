package session

import "errors"

var (
	// ErrInvalidInput: a field is not a number, start >= end, or a shortcut
	// is missing or malformed. The session is not started.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyRunning is returned by Start while a session is active.
	ErrAlreadyRunning = errors.New("session already running")

	// ErrNoActiveSession is returned by Cancel when nothing is running.
	ErrNoActiveSession = errors.New("no session running")

	// ErrActionFailed marks a trigger action that could not focus the target
	// window or send the shortcut. It never stops the session.
	ErrActionFailed = errors.New("action failed")
)
