package alter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPlanChanged is returned when the plan computed at apply time no longer
// matches the fingerprint the caller previewed. Nothing has executed.
var ErrPlanChanged = errors.New("plan changed since preview")

// RenameFailedError reports that the rename failed; no other step ran.
type RenameFailedError struct {
	From string
	To   string
	Err  error
}

func (e *RenameFailedError) Error() string {
	return fmt.Sprintf("renaming column %s to %s: %v", e.From, e.To, e.Err)
}

func (e *RenameFailedError) Unwrap() error { return e.Err }

// StepFailedError reports the step that failed and the ids of the steps that
// completed before it.
type StepFailedError struct {
	Step      Step
	Completed []string
	Err       error
}

func (e *StepFailedError) Error() string {
	msg := fmt.Sprintf("step %s on %s.%s failed: %v", e.Step.ID, e.Step.Table, e.Step.Column, e.Err)
	if len(e.Completed) > 0 {
		msg += fmt.Sprintf(" (completed: %s)", strings.Join(e.Completed, ", "))
	}
	return msg
}

func (e *StepFailedError) Unwrap() error { return e.Err }

// Completed returns the completed step ids carried by err, if any.
func Completed(err error) []string {
	var sf *StepFailedError
	if errors.As(err, &sf) {
		return sf.Completed
	}
	return nil
}
