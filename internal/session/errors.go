package session

import "errors"

// Sentinel errors reported through operation callbacks and listener
// notifications. Use errors.Is() to check for these in calling code.
var (
	// ErrNotInitialized is returned when an operation is attempted before Init.
	ErrNotInitialized = errors.New("session: not initialized")

	// ErrClosed is returned to continuations pending when Close runs.
	ErrClosed = errors.New("session: closed")

	// ErrConnectFailed wraps a transport connect error.
	ErrConnectFailed = errors.New("session: connect failed")

	// ErrSubscribeFailed wraps a transport subscribe error.
	ErrSubscribeFailed = errors.New("session: subscribe failed")

	// ErrUnsubscribeFailed wraps a transport unsubscribe error.
	ErrUnsubscribeFailed = errors.New("session: unsubscribe failed")

	// ErrPublishFailed wraps a transport publish error.
	ErrPublishFailed = errors.New("session: publish failed")

	// ErrAlreadyInitialized is returned when Init is called on an
	// initialized session.
	ErrAlreadyInitialized = errors.New("session: already initialized")
)
