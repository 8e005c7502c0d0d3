package command

import "tfvc/internal/reconcile"

// ExitCode is the process status an invocation finishes with.
type ExitCode int

const (
	ExitUnknown             ExitCode = -1
	ExitSuccess             ExitCode = 0
	ExitPartialSuccess      ExitCode = 1
	ExitUnrecognizedCommand ExitCode = 2
	ExitFailure             ExitCode = 100
)

func (c ExitCode) String() string {
	switch c {
	case ExitUnknown:
		return "unknown"
	case ExitSuccess:
		return "success"
	case ExitPartialSuccess:
		return "partial success"
	case ExitUnrecognizedCommand:
		return "unrecognized command"
	case ExitFailure:
		return "failure"
	default:
		return "invalid"
	}
}

// Compose folds next into c. The first code set wins unless next is
// higher; two different codes otherwise collapse to PartialSuccess.
func (c ExitCode) Compose(next ExitCode) ExitCode {
	switch {
	case c == ExitUnknown || next > c:
		return next
	case next != c:
		return ExitPartialSuccess
	default:
		return c
	}
}

// Outcome says how a runner finished.
type Outcome int

const (
	// Ran means the batch capability was invoked; Affected holds its count.
	Ran Outcome = iota
	// Empty means reconciliation found nothing to do.
	Empty
	// Declined means the user answered no to a confirmation.
	Declined
)

// Result is what a runner hands back to the executor.
type Result struct {
	Outcome  Outcome
	Affected int
	// Policy is set when the targets came from reconciliation.
	Policy reconcile.Policy
}

// ExitFor maps a runner result to an exit code and an optional message. It
// depends only on the command and the result.
func ExitFor(cmd *Command, res Result) (ExitCode, string) {
	switch res.Outcome {
	case Declined:
		return ExitSuccess, ""
	case Empty:
		switch res.Policy {
		case reconcile.DetectAdd:
			return ExitPartialSuccess, "No adds detected."
		case reconcile.DetectDelete:
			return ExitPartialSuccess, "No deletes detected."
		case reconcile.UndoUnchanged:
			return ExitSuccess, "All changes are modified."
		}
		return cmd.OnZero, cmd.ZeroMessage
	}
	if res.Affected > 0 {
		return ExitSuccess, ""
	}
	return cmd.OnZero, cmd.ZeroMessage
}
