package loop

import (
	"regexp"
	"strings"
)

// CompletionMarker is the literal token a worker emits anywhere in its
// output to signal that the full task list is satisfied.
const CompletionMarker = "<promise>COMPLETE</promise>"

// connectionErrorPattern matches the network-level failure signatures that
// mark an invocation as retryable. The signature set is a compatibility
// contract with the workers; extend it here, not in the driver.
var connectionErrorPattern = regexp.MustCompile(
	`ConnectError|ETIMEDOUT|ECONNRESET|ENOTFOUND|(?i:connection refused)`)

// Classification is the driver's verdict on one invocation's output
type Classification int

const (
	// ClassContinue means the output carried neither an error signature nor
	// the completion marker; the loop advances to the next iteration.
	ClassContinue Classification = iota

	// ClassTransientError means a retryable network failure signature was found
	ClassTransientError

	// ClassCompletion means the completion marker was found
	ClassCompletion
)

// String returns a stable identifier for the classification
func (c Classification) String() string {
	switch c {
	case ClassContinue:
		return "continue"
	case ClassTransientError:
		return "transient_error"
	case ClassCompletion:
		return "completion"
	default:
		return "unknown"
	}
}

// Classify inspects a worker's merged output text and classifies it into
// exactly one verdict. The transient-error check runs first and
// short-circuits: output containing both an error signature and the
// completion marker counts as an error.
func Classify(output string) Classification {
	if connectionErrorPattern.MatchString(output) {
		return ClassTransientError
	}
	if strings.Contains(output, CompletionMarker) {
		return ClassCompletion
	}
	return ClassContinue
}
