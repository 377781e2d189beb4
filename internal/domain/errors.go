package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidTransactionType = errors.New("invalid transaction type for operation")
	ErrAlreadyTerminal        = errors.New("transaction is already action-complete")
	ErrUnauthorized           = errors.New("missing actor identifier")
	ErrInvalidAmount          = errors.New("amount must not be negative")
	ErrInvalidRole            = errors.New("invalid role")
	ErrInvalidRequest         = errors.New("invalid request")
)
