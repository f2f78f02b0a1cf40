package cache

import (
	"fmt"

	"github.com/sells-group/volcanoes/internal/dataset"
)

// Error is returned for every filesystem failure in the store.
type Error struct {
	Op      string
	Dataset dataset.Dataset
	Path    string
	Err     error
}

func (e *Error) Error() string {
	msg := "cache " + e.Op
	if e.Dataset != "" {
		msg += " " + string(e.Dataset)
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	return msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
