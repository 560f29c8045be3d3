package workflow

import "errors"

// Sentinel errors for workflow operations. Handlers map these onto HTTP
// statuses; everything else is treated as a persistence failure and rolls the
// enclosing transaction back.
var (
	ErrUnknownStage      = errors.New("stage key not present in catalog")
	ErrPermissionDenied  = errors.New("actor not authorized for this stage")
	ErrInvalidTransition = errors.New("no legal transition from current state")
	ErrConflict          = errors.New("book no longer available")
)
