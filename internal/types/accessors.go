package types

import "fmt"

// StageOutput fetches a committed stage output and asserts its concrete type.
func StageOutput[T any](s *State, stage string) (T, error) {
	var zero T
	out, ok := s.Get(stage)
	if !ok {
		return zero, fmt.Errorf("state: stage %q has no committed output", stage)
	}
	typed, ok := out.(T)
	if !ok {
		return zero, fmt.Errorf("state: stage %q holds %T, want %T", stage, out, zero)
	}
	return typed, nil
}
