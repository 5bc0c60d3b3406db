package extractor

import (
	"errors"
	"time"
)

// Failure taxonomy. Outcome.Err wraps one of these.
var (
	ErrNotFound     = errors.New("input not found")
	ErrNotAnArchive = errors.New("not an archive")
	ErrDecode       = errors.New("decode failed")
	ErrFilesystem   = errors.New("filesystem error")
)

// State is the lifecycle position of an extraction.
type State int

const (
	StatePending State = iota
	StateProbing
	StateExtracting
	StateRescanning
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateProbing:
		return "probing"
	case StateExtracting:
		return "extracting"
	case StateRescanning:
		return "rescanning"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Result classifies how an input ended up.
type Result string

const (
	ResultExtracted  Result = "extracted"
	ResultEmpty      Result = "empty"
	ResultMissing    Result = "missing"
	ResultNotArchive Result = "not_archive"
	ResultFailed     Result = "failed"
	ResultRescanned  Result = "rescanned"
)

// Outcome reports one extraction. OK reflects only the outermost decode;
// nested failures are counted, not propagated.
type Outcome struct {
	Path           string
	Destination    string
	Format         string
	State          State
	Result         Result
	OK             bool
	Produced       []string // files still present that the extraction created
	Nested         int      // nested archives decoded
	NestedFailures int
	Err            error
	Duration       time.Duration
}
