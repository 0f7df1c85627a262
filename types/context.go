package types

// TaskControl is the slice of the running task a builtin may touch:
// identity, budgets, permission stack, and the caller list.
// The vm package provides the implementation; keeping the interface
// here lets builtins avoid importing it.
type TaskControl interface {
	TaskID() int64
	TicksLeft() int64
	SecondsLeft() float64
	Callers() Value     // callers() list, topmost caller first
	CallerPerms() ObjID // permissions of the calling verb's programmer
	SetPerms(who ObjID) // set_task_perms
}

// TaskContext is the execution context threaded through the evaluator
// and every builtin call.
type TaskContext struct {
	Player     ObjID  // task's player
	Programmer ObjID  // effective permissions
	ThisObj    ObjID  // current `this`
	Verb       string // current verb name
	VerbLoc    ObjID  // object the running verb was found on
	IsWizard   bool   // Programmer holds a wizard flag

	Task TaskControl // nil in bare expression evaluation
}

// NewTaskContext creates a context with nothing bound.
func NewTaskContext() *TaskContext {
	return &TaskContext{
		Player:     ObjNothing,
		Programmer: ObjNothing,
		ThisObj:    ObjNothing,
	}
}
