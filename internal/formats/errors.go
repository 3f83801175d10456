package formats

import "errors"

// Contract errors for the format catalog. Any of these at startup is fatal.
var (
	ErrInvalidFormat  = errors.New("format must be one of nbki, okb, scoring, equifax, kiwi, rsbki, unknown")
	ErrInvalidSchema  = errors.New("invalid field schema")
	ErrInvalidCatalog = errors.New("invalid format catalog")
)
