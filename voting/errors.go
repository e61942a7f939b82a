package voting

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrDuplicateVote     = errors.New("wallet has already voted on this question")
	ErrInvalidBalance    = errors.New("voting power must be positive")
	ErrNotActive         = errors.New("question is not open for voting")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// errUnchanged aborts a store update without writing anything.
var errUnchanged = errors.New("question unchanged")
