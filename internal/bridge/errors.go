package bridge

import (
	"errors"
	"fmt"

	"sessionhub/internal/model"
)

// ErrToolNotInstalled is wrapped by SpawnError when the executable cannot be
// found on PATH.
var ErrToolNotInstalled = errors.New("tool not installed")

// SpawnError reports that the external process could not be started. No
// registry entry exists when Start returns one.
type SpawnError struct {
	Tool       model.AiTool
	Executable string
	Err        error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s (%s): %v", e.Tool, e.Executable, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
