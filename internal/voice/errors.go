package voice

import "errors"

var (
	// ErrAlreadyActive is returned by Connect while a session is connecting
	// or connected.
	ErrAlreadyActive = errors.New("voice session already active")
	// ErrPermissionDenied is returned when the microphone was refused. The
	// controller stays idle and Connect may be retried.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrMicrophoneClosed is returned by Push on a released stream.
	ErrMicrophoneClosed = errors.New("microphone released")
)
