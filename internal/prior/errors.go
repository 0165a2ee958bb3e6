package prior

import (
	"fmt"

	"github.com/xkilldash9x/sherpa-cli/api/schemas"
)

// SchemaError reports structurally invalid persisted content: a malformed
// episode record or a corrupt checkpoint. Episode loaders recover from it per
// record; checkpoint loading treats it as fatal.
type SchemaError struct {
	Path string
	Err  error
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("schema error: %v", e.Err)
	}
	return fmt.Sprintf("schema error in %s: %v", e.Path, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// CheckpointVersionError reports an incompatible checkpoint version. It is
// fatal: versions are never silently migrated.
type CheckpointVersionError struct {
	Path string
	Got  int
	Want int
}

func (e *CheckpointVersionError) Error() string {
	return fmt.Sprintf("checkpoint %s has version %d, this build requires %d", e.Path, e.Got, e.Want)
}

// RejectionError is the recoverable signal returned by enforce mode when an
// action scores below the floor. The caller is expected to supply a fallback
// action or request an alternative.
type RejectionError struct {
	Action      schemas.Action
	Score       float64
	Floor       float64
	Consecutive int
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("action %q rejected: score %.6g below floor %.6g (%d consecutive)",
		e.Action.Type, e.Score, e.Floor, e.Consecutive)
}

// RejectionLimitError is the fatal loop-breaker raised after too many
// consecutive rejections.
type RejectionLimitError struct {
	Limit int
}

func (e *RejectionLimitError) Error() string {
	return fmt.Sprintf("exceeded %d consecutive action rejections, aborting", e.Limit)
}
