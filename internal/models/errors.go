package models

import "fmt"

// ConfigurationError fails a whole sweep before any parameter set runs
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ExtractionError is the failure of a single parameter set's run.
// It is recorded in that set's result and never stops the sweep.
type ExtractionError struct {
	SetID string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction for %s failed: %v", e.SetID, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
