package journal

import (
	"fmt"
	"strconv"

	apperrors "github.com/louisbranch/contentrepo/internal/platform/errors"
)

var (
	// ErrConcurrentAppend is returned when a stream is not at the expected version.
	ErrConcurrentAppend = apperrors.New(apperrors.CodeConcurrentAppend, "concurrent append")
	// ErrStreamNotFound is returned for reads or appends to a missing stream.
	ErrStreamNotFound = apperrors.New(apperrors.CodeContentStreamNotFound, "stream not found")
	// ErrStreamExists is returned when creating a stream that exists.
	ErrStreamExists = apperrors.New(apperrors.CodeContentStreamExists, "stream already exists")
	// ErrStreamClosed is returned when appending to a closed stream.
	ErrStreamClosed = apperrors.New(apperrors.CodeContentStreamClosed, "stream is closed")
	// ErrStreamIDRequired is returned when an append names no stream.
	ErrStreamIDRequired = apperrors.New(apperrors.CodeContentStreamIDEmpty, "stream id is required")
)

// ConcurrentAppendError reports the versions of a failed expected-version check.
type ConcurrentAppendError struct {
	StreamID string
	Expected uint64
	Actual   uint64
}

func (e *ConcurrentAppendError) Error() string {
	return fmt.Sprintf("concurrent append to %s: expected version %d, stream is at %d", e.StreamID, e.Expected, e.Actual)
}

func (e *ConcurrentAppendError) Unwrap() error {
	return apperrors.WithMetadata(apperrors.CodeConcurrentAppend, e.Error(), map[string]string{
		"stream_id": e.StreamID,
		"expected":  strconv.FormatUint(e.Expected, 10),
		"actual":    strconv.FormatUint(e.Actual, 10),
	})
}

// StreamNotFound returns ErrStreamNotFound with the stream id attached.
func StreamNotFound(id string) error {
	return apperrors.WithMetadata(apperrors.CodeContentStreamNotFound,
		fmt.Sprintf("stream %q not found", id), map[string]string{"stream_id": id})
}

func streamExists(id string) error {
	return apperrors.WithMetadata(apperrors.CodeContentStreamExists,
		fmt.Sprintf("stream %q already exists", id), map[string]string{"stream_id": id})
}

func streamClosed(id string) error {
	return apperrors.WithMetadata(apperrors.CodeContentStreamClosed,
		fmt.Sprintf("stream %q is closed", id), map[string]string{"stream_id": id})
}
