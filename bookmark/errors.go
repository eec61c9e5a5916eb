package bookmark

import (
	"fmt"
)

// RepositoryError reports failed repository operation.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("bookmark repository %s failed: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// MalformedRangeError is returned for ranges which cannot be rendered. Ranges
// are never clamped.
type MalformedRangeError struct {
	Range  Range
	Reason string
	Err    error
}

func (e *MalformedRangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed bookmark range (%s): %s: %v", e.Range, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed bookmark range (%s): %s", e.Range, e.Reason)
}

func (e *MalformedRangeError) Unwrap() error {
	return e.Err
}

// RegistryConsistencyError means highlight registry lost its invariant,
// this is a defect and current render pass has to be aborted.
type RegistryConsistencyError struct {
	HighlightID string
	MarkID      MarkID
	Reason      string
}

func (e *RegistryConsistencyError) Error() string {
	return fmt.Sprintf("highlight registry is inconsistent (highlight %q, mark %d): %s", e.HighlightID, e.MarkID, e.Reason)
}
