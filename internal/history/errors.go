package history

import (
	"errors"
	"fmt"
)

// ErrNoParser is returned when no transcript parser is registered for a tool.
var ErrNoParser = errors.New("no transcript parser")

// ImportError reports a failure to read or decode one transcript file.
type ImportError struct {
	Path string
	Op   string
	Err  error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}
