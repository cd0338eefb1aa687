package surface

import "errors"

// Error kinds. Every error returned by this package wraps exactly one of
// these sentinels, so callers can classify failures with errors.Is.
var (
	// ErrValue marks malformed input: face matrices that are not 3-wide,
	// coordinate matrices with unsupported dimensionality, or property
	// tables whose row count does not match the vertex count. Raised at
	// construction or validation time, never recovered internally.
	ErrValue = errors.New("surface: invalid value")

	// ErrLookup marks access to an unknown property or registration name.
	ErrLookup = errors.New("surface: unknown name")

	// ErrRuntime marks operations that cannot proceed at all, such as
	// cross-topology interpolation between topologies that share no
	// registration.
	ErrRuntime = errors.New("surface: operation failed")
)
