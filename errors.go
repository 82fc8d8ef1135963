package spatial

const (
	// ErrTypeInvalidConfig is the type of errors returned when a setter or
	// constructor rejects a value. The previous value is kept.
	ErrTypeInvalidConfig = "spatial_invalid_config"
	// ErrTypeRebuildFailed is the type of errors returned when a replacement
	// index could not be populated. The active index is left untouched.
	ErrTypeRebuildFailed = "spatial_rebuild_failed"
)
