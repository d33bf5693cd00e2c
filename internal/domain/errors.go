package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteService signals a failed call to the embedding or vector index service.
	ErrRemoteService = errors.New("remote service error")
	// ErrEmptyResult signals that the vector index returned no candidates.
	ErrEmptyResult = errors.New("vector index returned no candidates")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrZeroMagnitude signals a vector with zero norm, for which cosine is undefined.
	ErrZeroMagnitude = errors.New("zero magnitude vector")
	// ErrInvalidRequest signals a malformed re-rank request.
	ErrInvalidRequest = errors.New("invalid request")
)

// Remote service names used in RemoteServiceError.
const (
	ServiceEmbedding   = "embedding"
	ServiceVectorIndex = "vector_index"
)

// RemoteServiceError wraps ErrRemoteService with the failing collaborator and operation.
type RemoteServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *RemoteServiceError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is/As.
func (e *RemoteServiceError) Unwrap() []error { return []error{ErrRemoteService, e.Err} }

// NewRemoteServiceError creates a remote service error.
func NewRemoteServiceError(service, op string, err error) error {
	return &RemoteServiceError{Service: service, Op: op, Err: err}
}
