package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Construction errors are fatal at startup; the remaining
// errors are local to a single document or operation.
var (
	ErrInvalidChain          = errors.New("invalid schema chain")
	ErrShapeMismatch         = errors.New("upgrade shape mismatch")
	ErrMissingPriorVersion   = errors.New("missing prior version")
	ErrPriorVersionMalformed = errors.New("prior version malformed")
	ErrUpgradeOutputInvalid  = errors.New("upgrade output invalid")
	ErrLatestSchemaMismatch  = errors.New("document does not match latest schema")
	ErrDuplicateCollection   = errors.New("collection already registered")
	ErrUnknownCollection     = errors.New("unknown collection")
	ErrNotFound              = errors.New("document not found")
)

// ValidationError reports the JSON path at which a value failed validation.
type ValidationError struct {
	Path string
	Msg  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// ChainError reports a construction failure at a specific chain version.
type ChainError struct {
	Version int
	Err     error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chain version %d: %v", e.Version, e.Err)
}

func (e *ChainError) Unwrap() error { return e.Err }

// MigrationError reports a failed upgrade step. The engine must not mark the
// document as upgraded when it receives one.
type MigrationError struct {
	Collection string
	DocumentID string
	Version    int
	Err        error
}

func (e *MigrationError) Error() string {
	if e.Collection == "" && e.DocumentID == "" {
		return fmt.Sprintf("migrate to v%d: %v", e.Version, e.Err)
	}
	return fmt.Sprintf("migrate %s/%s to v%d: %v", e.Collection, e.DocumentID, e.Version, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }
