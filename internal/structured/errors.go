package structured

import "errors"

var (
	// ErrRetryExhausted means every attempt failed with a transient error.
	// The run may succeed if resubmitted.
	ErrRetryExhausted = errors.New("structured extraction attempts exhausted")

	// ErrMalformedResponse means the model output could not be repaired into JSON.
	ErrMalformedResponse = errors.New("malformed model response")

	// ErrShapeMismatch means the repaired JSON is not the expected object shape.
	ErrShapeMismatch = errors.New("model response has unexpected shape")
)
