package coordinator

import "fmt"

// State is a coordinator stage. Runs move forward through the stages in
// declaration order and never go back; any failure jumps to StateFailed.
type State string

const (
	StateInit           State = "INIT"
	StateBuildRecordSet State = "BUILD_RECORD_SET"
	StatePartition      State = "PARTITION"
	StateDispatch       State = "DISPATCH"
	StateAwaitAll       State = "AWAIT_ALL"
	StateAggregate      State = "AGGREGATE"
	StateReport         State = "REPORT"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// StageError is the diagnostic of a failed run.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
