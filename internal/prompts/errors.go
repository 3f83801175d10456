package prompts

import "errors"

// ErrMissingInstructions indicates a layout without extraction instructions.
// It is a configuration error raised at startup.
var ErrMissingInstructions = errors.New("missing extraction instructions")
