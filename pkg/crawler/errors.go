package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrObjectNotFound reports that a requested object does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrMetadataMissing reports an object response without the fields the
	// field mask asked for.
	ErrMetadataMissing = errors.New("object metadata missing")
	// ErrIndexOutOfBounds reports a table-vec field whose index falls
	// outside the parent's declared size.
	ErrIndexOutOfBounds = errors.New("index out of bounds")
)

// SizeMismatchError reports a dynamic-field listing whose length disagrees
// with the parent collection's declared size. Fatal: the collection cannot
// be reconstructed faithfully.
type SizeMismatchError struct {
	Expected uint64
	Got      uint64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("dynamic field size mismatch: expected %d, got %d", e.Expected, e.Got)
}
