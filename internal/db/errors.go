package db

import "errors"

// Sentinel errors for index operations.
var (
	ErrIndexNotFound   = errors.New("db: index not found")
	ErrMissingResult   = errors.New("db: result collection missing")
	ErrUnexpectedReply = errors.New("db: unexpected reply")
)

// Op constants name driver commands for error context.
const (
	OpSearch       = "FT.SEARCH"
	OpPing         = "PING"
	OpGraphQL      = "GraphQL Get"
	OpReady        = "GET /v1/.well-known/ready"
	OpPointsSearch = "Points.Search"
	OpHealthCheck  = "HealthCheck"
	OpDial         = "dial"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
