package audiomix

import "errors"

// Sentinel errors returned by manager and sound operations. Callers should
// compare with errors.Is rather than matching message text.
var (
	// ErrCategoryMissing is returned when an operation references a category
	// name that was never created with CreateCategory. Unlike voice
	// exhaustion, this is a caller configuration error and is always surfaced
	// rather than swallowed.
	ErrCategoryMissing = errors.New("audiomix: category does not exist")

	// ErrAssetLoadFailure wraps a decode or file-open failure during
	// CreateSound. The underlying cause is available via errors.Unwrap.
	ErrAssetLoadFailure = errors.New("audiomix: failed to load sound asset")

	// ErrSoundMissing is returned by DestroySound-style lookups.
	ErrSoundMissing = errors.New("audiomix: sound does not exist")

	// ErrDeviceDisabled is returned by operations that require a live mixer
	// device when the manager was initialized with the "nosound" device.
	ErrDeviceDisabled = errors.New("audiomix: device is disabled")
)
