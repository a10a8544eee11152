package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSubmitter indicates the configured submitter program is
	// not one this tool can drive.
	ErrUnknownSubmitter = errors.New("unknown job submitter")

	// ErrSubmitterNotFound indicates the submitter binary was not found.
	ErrSubmitterNotFound = errors.New("submitter binary not found")

	// ErrJobIDParseFailed indicates parsing the job ID from the
	// submitter output failed.
	ErrJobIDParseFailed = errors.New("failed to parse job ID from submitter output")

	// ErrNoJobFiles indicates a job with no input files.
	ErrNoJobFiles = errors.New("job has no input files")
)

// ParseError represents an error parsing scheduler directives from a script.
type ParseError struct {
	Scheduler string // scheduler name, "PBS" or "SLURM"
	Line      int
	Content   string
	Reason    string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s parse error at line %d (%s): %s",
			e.Scheduler, e.Line, e.Content, e.Reason)
	}
	return fmt.Sprintf("%s parse error: %s", e.Scheduler, e.Reason)
}

// SubmissionError represents an error during job submission.
type SubmissionError struct {
	Scheduler string
	Script    string
	Output    string
	Err       error
}

func (e *SubmissionError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s submission failed for %s: %v\nOutput: %s",
			e.Scheduler, e.Script, e.Err, e.Output)
	}
	return fmt.Sprintf("%s submission failed for %s: %v", e.Scheduler, e.Script, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(scheduler string, line int, content, reason string) *ParseError {
	return &ParseError{Scheduler: scheduler, Line: line, Content: content, Reason: reason}
}

// NewSubmissionError creates a new SubmissionError.
func NewSubmissionError(scheduler, script, output string, err error) *SubmissionError {
	return &SubmissionError{Scheduler: scheduler, Script: script, Output: output, Err: err}
}

// IsParseError checks if an error is a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsSubmissionError checks if an error is a SubmissionError.
func IsSubmissionError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}
