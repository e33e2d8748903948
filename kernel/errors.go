package kernel

import "errors"

// Errors reported by the kernel. Callers match them with errors.Is.
var (
	// ErrScriptNotFound means the source file of a script could not be read.
	ErrScriptNotFound = errors.New("script not found")

	// ErrStorage means the backing store failed to keep or serve lines.
	ErrStorage = errors.New("backing store failure")

	// ErrFrameStoreExhausted means no frame could be found or evicted.
	ErrFrameStoreExhausted = errors.New("frame store exhausted")
)
