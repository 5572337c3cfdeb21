package reaper

import (
	"fmt"
	"time"
)

// ListingError aborts a pass: no partial listing is acted on.
type ListingError struct {
	Page int
	Err  error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("listing jobs failed on page %d: %v", e.Page, e.Err)
}

func (e *ListingError) Unwrap() error {
	return e.Err
}

// JobDeleteError is logged and counted; it never aborts a pass.
type JobDeleteError struct {
	Name   string
	Reason string
	Err    error
}

func (e *JobDeleteError) Error() string {
	return fmt.Sprintf("deleting job %s failed (%s): %v", e.Name, e.Reason, e.Err)
}

func (e *JobDeleteError) Unwrap() error {
	return e.Err
}

// ReclamationStall means the pending set never dropped to the threshold within the retry budget.
// It is fatal to the run.
type ReclamationStall struct {
	Pending  int
	Attempts int
	Elapsed  time.Duration
}

func (e *ReclamationStall) Error() string {
	return fmt.Sprintf("%d jobs still pending after %d rechecks (%v)", e.Pending, e.Attempts, e.Elapsed.Round(time.Millisecond))
}
