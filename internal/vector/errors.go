package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexBuild matches every *BuildError.
	ErrIndexBuild = errors.New("index build failed")
	// ErrNotBuilt means the store holds no index yet. Callers rebuild.
	ErrNotBuilt = errors.New("index not built")
	// ErrInconsistentIndex means the persisted vectors and chunk records
	// do not line up.
	ErrInconsistentIndex = errors.New("inconsistent index")
)

// BuildError describes why a build committed nothing.
type BuildError struct {
	Reason string
	Batch  int // 1-based batch number, 0 when not batch related
	Err    error
}

func (e *BuildError) Error() string {
	msg := "index build: " + e.Reason
	if e.Batch > 0 {
		msg = fmt.Sprintf("%s (batch %d)", msg, e.Batch)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BuildError) Unwrap() error { return e.Err }

func (e *BuildError) Is(target error) bool { return target == ErrIndexBuild }

func fmtInconsistent(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInconsistentIndex, fmt.Sprintf(format, args...))
}
