package vecrank

import "github.com/kailas-cloud/vecrank/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidRequest    = domain.ErrInvalidRequest
	ErrEmptyResult       = domain.ErrEmptyResult
	ErrRemoteService     = domain.ErrRemoteService
	ErrVectorDimMismatch = domain.ErrVectorDimMismatch
	ErrZeroMagnitude     = domain.ErrZeroMagnitude
)
