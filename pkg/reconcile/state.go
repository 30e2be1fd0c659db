package reconcile

import "fmt"

// State 同步流程所处阶段
type State string

const (
	StateIdle        State = "idle"
	StateCheckingIP  State = "checking-ip"
	StateNoChange    State = "no-change"
	StateReconciling State = "reconciling"
	StateDeleting    State = "deleting"
	StateCreating    State = "creating"
	StatePersisting  State = "persisting"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

func (s State) String() string { return string(s) }

// Terminal 是否为终止状态
func (s State) Terminal() bool {
	return s == StateNoChange || s == StateDone || s == StateFailed
}

// StageError 记录失败发生的阶段
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
