package types

import "errors"

// Domain error taxonomy shared by services and repos. Callers branch with
// errors.Is; repos and clients wrap the sentinel with context via fmt.Errorf.
var (
	// ErrNotFound means the referenced entity vanished between enqueue and
	// processing. Evaluation treats it as a skip, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrFeatureDisabled means instance configuration forbids the requested
	// capability (e.g. smart search without a machine-learning backend).
	ErrFeatureDisabled = errors.New("feature disabled")

	// ErrInfrastructure means a backing system (queue, database, search
	// backend, ML service) is unreachable. Surfaced to the job system so its
	// retry policy applies; the engine never retries on its own.
	ErrInfrastructure = errors.New("infrastructure unavailable")

	// ErrValidation means a malformed search specification. Raised at album
	// create/update time, never during evaluation.
	ErrValidation = errors.New("validation failed")
)
