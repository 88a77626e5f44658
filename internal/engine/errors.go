package engine

import "errors"

// Error kinds. Failures are wrapped as fmt.Errorf("%w: ...: %w", kind, cause)
// so errors.Is matches both the kind and the underlying cause.
var (
	// ErrStoreUnavailable means the member store could not be read or written.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrDeliveryFailed means a direct or chat message could not be sent.
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrRemovalFailed means the member could not be removed from the chat.
	// The member's record is left in place.
	ErrRemovalFailed = errors.New("removal failed")

	// ErrNameResolution means the display name lookup failed; callers fall
	// back to the stored name or the raw id.
	ErrNameResolution = errors.New("name resolution failed")
)
