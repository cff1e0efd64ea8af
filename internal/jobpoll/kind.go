package jobpoll

// Kind is the closed set of asynchronous job variants. Each kind supplies
// the terminal-status sets of its backend.
type Kind int

const (
	// KindBuild is a merge/build job.
	KindBuild Kind = iota + 1
	// KindStack is a deployment stack update.
	KindStack
	// KindExecution is a test-runner execution.
	KindExecution
)

func (k Kind) String() string {
	switch k {
	case KindBuild:
		return "build"
	case KindStack:
		return "stack"
	case KindExecution:
		return "execution"
	default:
		return "undefined"
	}
}

var buildSuccessStatuses = map[string]struct{}{
	"SUCCEEDED": {},
}

var buildFailureStatuses = map[string]struct{}{
	"FAILED":    {},
	"FAULT":     {},
	"STOPPED":   {},
	"TIMED_OUT": {},
}

var stackSuccessStatuses = map[string]struct{}{
	"UPDATE_COMPLETE": {},
}

// rollback states are terminal for an update, the update itself did not
// succeed
var stackFailureStatuses = map[string]struct{}{
	"UPDATE_FAILED":            {},
	"UPDATE_ROLLBACK_COMPLETE": {},
	"UPDATE_ROLLBACK_FAILED":   {},
}

var executionSuccessStatuses = map[string]struct{}{
	"SUCCEEDED": {},
}

var executionFailureStatuses = map[string]struct{}{
	"FAILED":    {},
	"TIMED_OUT": {},
	"ABORTED":   {},
}

func (k Kind) isSuccess(status string) bool {
	_, exist := k.successStatuses()[status]
	return exist
}

func (k Kind) isFailure(status string) bool {
	_, exist := k.failureStatuses()[status]
	return exist
}

func (k Kind) successStatuses() map[string]struct{} {
	switch k {
	case KindBuild:
		return buildSuccessStatuses
	case KindStack:
		return stackSuccessStatuses
	case KindExecution:
		return executionSuccessStatuses
	default:
		return nil
	}
}

func (k Kind) failureStatuses() map[string]struct{} {
	switch k {
	case KindBuild:
		return buildFailureStatuses
	case KindStack:
		return stackFailureStatuses
	case KindExecution:
		return executionFailureStatuses
	default:
		return nil
	}
}
