package viewer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRequest is a caller error such as a missing note id.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFoundOrForbidden covers both absent notes and notes the caller
	// may not read. The two causes are never told apart.
	ErrNotFoundOrForbidden = errors.New("note not found or you do not have access")

	// ErrTransientNetwork is returned once metadata reads have exhausted
	// their retries.
	ErrTransientNetwork = errors.New("temporary network error, try again")

	// ErrPartialAttachmentFailure marks a view from which at least one
	// attachment was dropped. It is reported on NoteView.Partial, never as
	// the returned error.
	ErrPartialAttachmentFailure = errors.New("some attachments are unavailable")

	// ErrAttachmentUnavailable is returned when an expired attachment URL
	// cannot be signed again.
	ErrAttachmentUnavailable = errors.New("attachment is unavailable")
)

// PartialAttachmentFailure lists the attachments dropped from a view
// together with the signing error of each.
type PartialAttachmentFailure struct {
	Dropped []string
	Causes  []error
}

func (p *PartialAttachmentFailure) Error() string {
	return fmt.Sprintf("%s: %d dropped (%s)", ErrPartialAttachmentFailure, len(p.Dropped), strings.Join(p.Dropped, ", "))
}

func (p *PartialAttachmentFailure) Is(target error) bool {
	return target == ErrPartialAttachmentFailure
}

func (p *PartialAttachmentFailure) Unwrap() []error {
	return p.Causes
}
