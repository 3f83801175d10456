package extract

import "errors"

// Input errors. Both are non-retryable: the document itself is defective.
var (
	ErrUnreadableDocument = errors.New("unreadable document")
	ErrEncryptedDocument  = errors.New("encrypted document")
)
