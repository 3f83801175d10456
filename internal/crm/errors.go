package crm

import "errors"

var (
	ErrDisabled    = errors.New("crm webhook not configured")
	ErrInvalidDeal = errors.New("invalid deal id")
	ErrRemote      = errors.New("crm call failed")
)
