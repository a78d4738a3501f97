package collection

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired is returned when a mutating operation runs without a signed-in user.
	ErrAuthRequired = errors.New("you must be signed in")

	// ErrPlayerRequired is returned by ApplyFormDefaults when the player name is blank.
	ErrPlayerRequired = errors.New("player name is required")
)

// RemoteWriteError means the record service rejected an insert or delete.
type RemoteWriteError struct {
	Op      string // "insert" or "delete"
	Message string
	Err     error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("%s card: %s", e.Op, e.Message)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }

// RemoteReadError means fetching cards failed, after the ordering fallback when one applies.
type RemoteReadError struct {
	Message string
	Err     error
}

func (e *RemoteReadError) Error() string {
	return "load cards: " + e.Message
}

func (e *RemoteReadError) Unwrap() error { return e.Err }

// ImageUploadError covers a file that is not an image and a storage rejection.
type ImageUploadError struct {
	Reason string
	Err    error
}

func (e *ImageUploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("image upload: %s: %v", e.Reason, e.Err)
	}
	return "image upload: " + e.Reason
}

func (e *ImageUploadError) Unwrap() error { return e.Err }

func remoteMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
