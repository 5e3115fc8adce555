package graph

import (
	"errors"
	"fmt"
)

// ErrValidation is the sentinel all graph rejections wrap, for errors.Is().
var ErrValidation = errors.New("graph validation error")

// RejectCode identifies why a graph mutation was rejected.
type RejectCode string

const (
	// CodeDuplicateBackboneNode indicates an attempt to create a backbone
	// node kind that already exists.
	CodeDuplicateBackboneNode RejectCode = "duplicate_backbone_node"

	// CodeUnknownNode indicates an edge endpoint that does not exist.
	CodeUnknownNode RejectCode = "unknown_node"

	// CodeDuplicateEdge indicates an edge with an identical (source, target)
	// pair already exists.
	CodeDuplicateEdge RejectCode = "duplicate_edge"

	// CodeInvalidWorkerEdge indicates an edge touching a Worker whose other
	// endpoint is not the Router.
	CodeInvalidWorkerEdge RejectCode = "invalid_worker_edge"
)

// ValidationError is a typed rejection from a graph mutation. The graph is
// unchanged whenever one is returned.
type ValidationError struct {
	Code RejectCode
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Code, e.Msg)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// CodeOf returns the rejection code carried by err, or "" when err is not a
// graph validation error.
func CodeOf(err error) RejectCode {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}
