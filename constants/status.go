package constants

// AttemptState is the lifecycle state of one document's extraction attempt.
type AttemptState string

// Stable values (these exact strings appear in logs and metrics labels).
const (
	StatePending    AttemptState = "PENDING"
	StateChecking   AttemptState = "CHECKING"
	StateSkipped    AttemptState = "SKIPPED"    // pre-check said no; null row persisted
	StateExtracting AttemptState = "EXTRACTING" // extraction call in flight
	StateValidating AttemptState = "VALIDATING"
	StateRetrying   AttemptState = "RETRYING"
	StateSucceeded  AttemptState = "SUCCEEDED" // terminal
	StateFailed     AttemptState = "FAILED"    // terminal; sentinel row persisted
)

// Terminal reports whether no further transition can follow s.
func (s AttemptState) Terminal() bool {
	switch s {
	case StateSkipped, StateSucceeded, StateFailed:
		return true
	}
	return false
}

// CheckResult is the cached answer of the pre-check call.
type CheckResult string

const (
	CheckUnknown CheckResult = "unknown"
	CheckYes     CheckResult = "yes"
	CheckNo      CheckResult = "no"
)

// Literal cell tokens written to the result table.
const (
	NullToken   = "null"
	FailedToken = "failed"
)

// EmptyResultMarker is the literal the model answers with when a document holds no rows.
const EmptyResultMarker = "|||"

// ExampleMarker prefixes synthetic example strings so echoed examples can be discarded.
const ExampleMarker = "EXAMPLE_"

// DocumentIDHeader names the trailing column of the result table.
const DocumentIDHeader = "document_id"
