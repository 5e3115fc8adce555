package transform

import (
	"errors"
	"fmt"
)

// ErrGenerationUnavailable indicates no generation collaborator (or its
// credential) is configured. The call never leaves the process.
var ErrGenerationUnavailable = errors.New("generation unavailable")

// MalformedResponseError indicates the collaborator replied with something
// that does not parse as JSON.
type MalformedResponseError struct {
	Reply string // raw reply, kept for the failure document shown to the operator
	Err   error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed generation response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// IsMalformedResponse reports whether err is a malformed-response failure.
func IsMalformedResponse(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}

// PromptTooLargeError indicates the built prompt exceeded the configured
// token limit, rejected before any network call.
type PromptTooLargeError struct {
	Tokens int
	Limit  int
}

func (e *PromptTooLargeError) Error() string {
	return fmt.Sprintf("prompt of %d tokens exceeds limit %d", e.Tokens, e.Limit)
}
