package compare

import (
	"fmt"

	"golang.org/x/xerrors"
)

var (
	// ErrNotFound means the baseline image does not exist or could not be read.
	ErrNotFound = xerrors.New("baseline not found")
	// ErrDecode means the baseline or the actual bytes are not a decodable image.
	ErrDecode = xerrors.New("image decode failed")
	// ErrIO means one of the output artifacts could not be written.
	ErrIO = xerrors.New("artifact write failed")
)

// Error records the step and path that failed. errors.Is matches it against
// the sentinel in Kind as well as the wrapped cause.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}
