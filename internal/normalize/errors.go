package normalize

import "fmt"

// UnknownPlatformError is returned for a platform or product description
// outside the fixed mapping table.
type UnknownPlatformError struct {
	Raw string
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("unknown platform %q", e.Raw)
}

// RecordError ties a normalization failure to the raw record that caused it.
type RecordError struct {
	Kind    string // "instance" or "reservation"
	Subject string
	Err     error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Subject, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
