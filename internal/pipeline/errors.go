package pipeline

import "fmt"

// PipelineError wraps the failure that aborted a run, tagged with the stage
// that produced it. A run surfaces no FinalResult on this path.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline: stage %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// InsufficientCandidatesError reports that fewer validated strategies
// survived evaluation than the configured top-K requires.
type InsufficientCandidatesError struct {
	Have int
	Want int
}

func (e *InsufficientCandidatesError) Error() string {
	return fmt.Sprintf("pipeline: %d validated strategies, need %d", e.Have, e.Want)
}
