package formsapi

import "fmt"

// RemoteUnavailableError means the forms service could not be reached at all.
type RemoteUnavailableError struct {
	URL string
	Err error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("Forms service unreachable: %v", e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

// FetchFailedError carries the last non-success answer of the forms service.
type FetchFailedError struct {
	Status int
	Body   string
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("forms service returned %d: %s", e.Status, e.Body)
}

// MalformedSchemaError means the payload could not be turned into a form.
type MalformedSchemaError struct {
	Reason string
	Err    error
}

func (e *MalformedSchemaError) Error() string {
	return "Malformed form meta: " + e.Reason
}

func (e *MalformedSchemaError) Unwrap() error { return e.Err }
