package task

import (
	"sync"
	"sync/atomic"
	"time"

	"etamoo/types"
	"etamoo/vm"
)

// State is the lifecycle state of a task.
type State int

const (
	StateRunnable State = iota
	StateRunning
	StateSuspended
	StateReading
	StateDone
)

func (s State) String() string {
	switch s {
	case StateRunnable:
		return "runnable"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateReading:
		return "reading"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// Kind records how the task came to exist.
type Kind int

const (
	KindCommand Kind = iota
	KindForked
	KindServer // server hook (do_login_command and friends)
)

// Task is one scheduled run of verb code. The whole in-flight
// computation lives in the retained machine, so a suspended task is
// resumable by construction.
type Task struct {
	ID    int64
	Owner types.ObjID
	Kind  Kind

	Machine *vm.VM

	StartTime  time.Time
	WakeTime   time.Time // when the task is next due to run; zero while suspended indefinitely
	Indefinite bool      // suspended with no wake time, until resume()
	WakeValue  types.Value
	ReadConn   types.ObjID // connection awaited while reading

	Background bool // consumed a suspension; uses background budgets
	Seq        int64

	killed atomic.Bool

	mu    sync.Mutex
	state State
}

// NewTask wraps a machine as a runnable task.
func NewTask(id int64, owner types.ObjID, machine *vm.VM) *Task {
	machine.TaskID = id
	return &Task{
		ID:        id,
		Owner:     owner,
		Machine:   machine,
		StartTime: time.Now(),
		ReadConn:  types.ObjNothing,
		state:     StateRunnable,
	}
}

// State returns the current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState transitions the task.
func (t *Task) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// Kill marks the task for collection at its next tick boundary.
func (t *Task) Kill() {
	t.killed.Store(true)
}

// KilledFlag exposes the kill marker for the machine's tick checks.
func (t *Task) KilledFlag() *atomic.Bool {
	return &t.killed
}

// Killed reports whether the task has been marked.
func (t *Task) Killed() bool {
	return t.killed.Load()
}

// QueuedInfo renders the queued_tasks() entry for this task:
// {task-id, start-time, clock-id, ticks, programmer, verb-loc,
// verb-name, line, this}.
func (t *Task) QueuedInfo() types.Value {
	m := t.Machine
	progr := types.ObjNothing
	verbLoc := types.ObjNothing
	verbName := ""
	this := types.ObjNothing
	line := 0
	if len(m.Frames) > 0 {
		f := m.Frames[len(m.Frames)-1]
		progr = f.Programmer
		verbLoc = f.VerbLoc
		verbName = f.VerbName
		this = f.This
	}
	start := t.StartTime
	if !t.WakeTime.IsZero() {
		start = t.WakeTime
	}
	return types.NewList([]types.Value{
		types.NewInt(t.ID),
		types.NewInt(start.Unix()),
		types.NewInt(0),
		types.NewInt(m.TicksLeft()),
		types.NewObj(progr),
		types.NewObj(verbLoc),
		types.NewStr(verbName),
		types.NewInt(int64(line)),
		types.NewObj(this),
	})
}
