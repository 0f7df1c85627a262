package vm

import (
	"fmt"
	"sync/atomic"
	"time"

	"etamoo/db"
	"etamoo/types"
)

// BuiltinCaller dispatches builtin functions; the builtins package
// provides the implementation.
type BuiltinCaller interface {
	Call(name string, ctx *types.TaskContext, args []types.Value) types.Result
	Exists(name string) bool
}

// Hooks are the scheduler services the machine needs while running.
type Hooks interface {
	// Fork schedules a child task and returns its id.
	Fork(spec *ForkSpec) int64
}

// ForkSpec carries everything a forked task needs to start: the child
// program, a snapshot of the parent's locals, and the frame context.
type ForkSpec struct {
	Prog       *Program
	Locals     []types.Value
	Delay      float64
	This       types.ObjID
	Player     types.ObjID
	Caller     types.ObjID
	Programmer types.ObjID
	VerbName   string
	VerbLoc    types.ObjID
	Debug      bool
	VarIdx     int // local slot for the child task id; noOperand if unnamed
	Cmd        CommandVars
}

// CommandVars are the command-derived variables every frame exposes.
type CommandVars struct {
	Argstr  string
	Dobjstr string
	Prepstr string
	Iobjstr string
	Dobj    types.ObjID
	Iobj    types.ObjID
}

// Frame is one verb activation: its own code, locals, handler and loop
// stacks, and permission context. The operand stack is shared across
// frames, partitioned by BaseSP.
type Frame struct {
	Prog   *Program
	IP     int
	BaseSP int
	Locals []types.Value

	Handlers []Handler
	Loops    []LoopState
	Pending  []*Unwind
	Ctx      []int64 // $-length context stack

	This       types.ObjID
	Player     types.ObjID
	Caller     types.ObjID
	Programmer types.ObjID
	VerbName   string
	VerbLoc    types.ObjID
	Debug      bool
}

type handlerKind int

const (
	handlerExcept handlerKind = iota
	handlerFinally
	handlerCatch
)

// ExceptArm is one except clause of an installed try handler.
type ExceptArm struct {
	Codes  types.Value // ListValue of codes; nil for ANY
	VarIdx int
	Addr   int
}

// Handler is one installed try/except, try/finally, or catch-expression
// handler, with enough machine state to restore on entry.
type Handler struct {
	Kind      handlerKind
	Arms      []ExceptArm // except
	Codes     types.Value // catch; nil for ANY
	Addr      int         // finally / catch handler address
	SP        int
	LoopDepth int
	CtxDepth  int
}

// LoopState is one active loop, recorded so break and continue can
// unwind through intervening handlers.
type LoopState struct {
	Name         string
	BaseSP       int
	IterSlots    int
	BreakAddr    int
	ContAddr     int
	HandlerDepth int
	CtxDepth     int
}

type unwindKind int

const (
	unwindNone unwindKind = iota
	unwindRaise
	unwindReturn
	unwindBreak
	unwindContinue
)

// Unwind is an in-flight non-local transfer: a raised error, a return,
// or a break/continue, paused while finally blocks run.
type Unwind struct {
	Kind  unwindKind
	Code  types.ErrorCode
	Msg   string
	Extra types.Value
	Val   types.Value
	Label string
}

// OutcomeKind says how a Run slice ended.
type OutcomeKind int

const (
	OutDone OutcomeKind = iota
	OutSuspend
	OutRead
	OutTicksExhausted
	OutSecondsExhausted
	OutKilled
	OutUncaught
)

// Outcome is the result of running the machine until it stops.
type Outcome struct {
	Kind      OutcomeKind
	Value     types.Value // OutDone
	Seconds   float64     // OutSuspend; negative means indefinite
	Conn      types.ObjID // OutRead
	Err       types.Result
	Traceback []string
}

// VM is the whole machine state of one task. Because every bit of it is
// explicit — operand stack, frame stack, handler stacks — a suspended
// task is simply a retained *VM, and resumption pushes the wake value
// and re-enters the step loop.
type VM struct {
	Stack  []types.Value
	SP     int
	Frames []*Frame

	Store    *db.Store
	Builtins BuiltinCaller
	Hooks    Hooks

	TaskID    int64
	Player    types.ObjID
	Cmd       CommandVars
	TicksUsed int64
	TickLimit int64
	Deadline  time.Time
	MaxDepth  int
	Killed    *atomic.Bool

	tb     []string
	result types.Value
}

// New creates a machine bound to a store and builtin registry.
func New(store *db.Store, builtins BuiltinCaller) *VM {
	opts := db.Options()
	return &VM{
		Stack:     make([]types.Value, 0, 64),
		Store:     store,
		Builtins:  builtins,
		TickLimit: opts.FgTicks,
		MaxDepth:  opts.MaxStackDepth,
		Player:    types.ObjNothing,
	}
}

// TicksLeft reports the ticks remaining in the current budget.
func (vm *VM) TicksLeft() int64 { return vm.TickLimit - vm.TicksUsed }

// SecondsLeft reports the seconds remaining before the deadline, or 0
// when none is set.
func (vm *VM) SecondsLeft() float64 {
	if vm.Deadline.IsZero() {
		return 0
	}
	left := time.Until(vm.Deadline).Seconds()
	if left < 0 {
		return 0
	}
	return left
}

// TaskIDValue returns the machine's task id.
func (vm *VM) TaskIDValue() int64 { return vm.TaskID }

// Stack helpers

func (vm *VM) push(v types.Value) {
	if vm.SP < len(vm.Stack) {
		vm.Stack[vm.SP] = v
	} else {
		vm.Stack = append(vm.Stack, v)
	}
	vm.SP++
}

func (vm *VM) pop() types.Value {
	vm.SP--
	return vm.Stack[vm.SP]
}

func (vm *VM) peek(off int) types.Value {
	return vm.Stack[vm.SP-1-off]
}

func (vm *VM) frame() *Frame {
	return vm.Frames[len(vm.Frames)-1]
}

func (vm *VM) readU8() int {
	f := vm.frame()
	v := int(f.Prog.Code[f.IP])
	f.IP++
	return v
}

func (vm *VM) readU16() int {
	f := vm.frame()
	v := int(f.Prog.Code[f.IP])<<8 | int(f.Prog.Code[f.IP+1])
	f.IP += 2
	return v
}

func (vm *VM) curLine() int {
	f := vm.frame()
	ip := f.IP - 1
	if ip < 0 {
		ip = 0
	}
	if ip >= len(f.Prog.Lines) {
		ip = len(f.Prog.Lines) - 1
	}
	if ip < 0 {
		return 0
	}
	return f.Prog.Lines[ip]
}

// PushFrame enters a verb activation.
func (vm *VM) PushFrame(prog *Program, this, caller, programmer types.ObjID, verbName string, verbLoc types.ObjID, debug bool, args types.Value) {
	locals := make([]types.Value, prog.NumVars)
	f := &Frame{
		Prog:       prog,
		BaseSP:     vm.SP,
		Locals:     locals,
		This:       this,
		Caller:     caller,
		Player:     vm.Player,
		Programmer: programmer,
		VerbName:   verbName,
		VerbLoc:    verbLoc,
		Debug:      debug,
	}
	vm.initBuiltinVars(f, args)
	vm.Frames = append(vm.Frames, f)
}

// initBuiltinVars fills the fixed slots every program reserves.
func (vm *VM) initBuiltinVars(f *Frame, args types.Value) {
	set := func(i int, v types.Value) {
		if i < len(f.Locals) {
			f.Locals[i] = v
		}
	}
	if args == nil {
		args = types.NewEmptyList()
	}
	set(0, types.NewObj(f.Player))
	set(1, types.NewObj(f.This))
	set(2, types.NewObj(f.Caller))
	set(3, types.NewStr(f.VerbName))
	set(4, args)
	set(5, types.NewStr(vm.Cmd.Argstr))
	set(6, types.NewObj(vm.Cmd.Dobj))
	set(7, types.NewStr(vm.Cmd.Dobjstr))
	set(8, types.NewStr(vm.Cmd.Prepstr))
	set(9, types.NewObj(vm.Cmd.Iobj))
	set(10, types.NewStr(vm.Cmd.Iobjstr))
	set(11, types.NewInt(int64(types.TYPE_INT)))   // INT
	set(12, types.NewInt(int64(types.TYPE_INT)))   // NUM
	set(13, types.NewInt(int64(types.TYPE_FLOAT))) // FLOAT
	set(14, types.NewInt(int64(types.TYPE_OBJ)))   // OBJ
	set(15, types.NewInt(int64(types.TYPE_STR)))   // STR
	set(16, types.NewInt(int64(types.TYPE_ERR)))   // ERR
	set(17, types.NewInt(int64(types.TYPE_LIST)))  // LIST
}

// Resume pushes the wake value a suspension yielded and lets Run carry
// on from the exact instruction after the suspending call.
func (vm *VM) Resume(v types.Value) {
	if v == nil {
		v = types.NewInt(0)
	}
	vm.push(v)
}

// Run steps the machine until the task completes, suspends, exhausts a
// budget, or dies.
func (vm *VM) Run() *Outcome {
	checkCounter := 0
	for {
		if len(vm.Frames) == 0 {
			val := vm.result
			if val == nil {
				val = types.NewInt(0)
			}
			return &Outcome{Kind: OutDone, Value: val}
		}

		if vm.Killed != nil && vm.Killed.Load() {
			return &Outcome{Kind: OutKilled, Traceback: vm.abortTraceback("Task killed")}
		}

		vm.TicksUsed++
		if vm.TicksUsed > vm.TickLimit {
			return &Outcome{Kind: OutTicksExhausted, Traceback: vm.abortTraceback("Task ran out of ticks")}
		}
		checkCounter++
		if checkCounter >= 512 {
			checkCounter = 0
			if !vm.Deadline.IsZero() && time.Now().After(vm.Deadline) {
				return &Outcome{Kind: OutSecondsExhausted, Traceback: vm.abortTraceback("Task ran out of seconds")}
			}
		}

		f := vm.frame()
		if f.IP >= len(f.Prog.Code) {
			if out := vm.performUnwind(&Unwind{Kind: unwindReturn, Val: types.NewInt(0)}); out != nil {
				return out
			}
			continue
		}

		op := OpCode(f.Prog.Code[f.IP])
		f.IP++
		if out := vm.execute(op); out != nil {
			return out
		}
	}
}

// abortTraceback renders the frame stack for an uncatchable abort.
func (vm *VM) abortTraceback(reason string) []string {
	var lines []string
	for i := len(vm.Frames) - 1; i >= 0; i-- {
		f := vm.Frames[i]
		where := fmt.Sprintf("#%d:%s", int64(f.VerbLoc), f.VerbName)
		if i == len(vm.Frames)-1 {
			lines = append(lines, fmt.Sprintf("%s (this == #%d), line %d:  %s",
				where, int64(f.This), vm.curLine(), reason))
		} else {
			lines = append(lines, fmt.Sprintf("... called from %s (this == #%d)",
				where, int64(f.This)))
		}
	}
	lines = append(lines, "(End of traceback)")
	return lines
}

// raise raises a MOO error at the current instruction. The returned
// outcome is non-nil when the whole task aborts; substituted is true
// when the frame's debug flag turned the error into a value and
// execution continues in place.
func (vm *VM) raise(code types.ErrorCode, msg string, extra types.Value) (out *Outcome, substituted bool) {
	if msg == "" {
		msg = code.Message()
	}
	f := vm.frame()

	// A matching handler in the current frame catches regardless of
	// the debug flag; with no handler and debug off the error value
	// replaces the failed expression.
	if !vm.frameHasRelevantHandler(f, code) && !f.Debug {
		vm.push(types.NewErr(code))
		return nil, true
	}

	return vm.performUnwind(&Unwind{Kind: unwindRaise, Code: code, Msg: msg, Extra: extra}), false
}

func (vm *VM) frameHasRelevantHandler(f *Frame, code types.ErrorCode) bool {
	for i := len(f.Handlers) - 1; i >= 0; i-- {
		h := f.Handlers[i]
		switch h.Kind {
		case handlerFinally:
			// A finally alone does not catch, but the raise must still
			// unwind through it when a handler exists further down; the
			// scan continues.
		case handlerCatch:
			if codesMatch(h.Codes, code) {
				return true
			}
		case handlerExcept:
			for _, arm := range h.Arms {
				if codesMatch(arm.Codes, code) {
					return true
				}
			}
		}
	}
	return false
}

func codesMatch(codes types.Value, code types.ErrorCode) bool {
	if codes == nil {
		return true
	}
	list, ok := codes.(types.ListValue)
	if !ok {
		return false
	}
	return list.Contains(types.NewErr(code)) != 0
}

// restoreTo resets machine state to a handler's recorded depths.
func (vm *VM) restoreTo(f *Frame, h Handler) {
	vm.SP = h.SP
	f.Loops = f.Loops[:h.LoopDepth]
	f.Ctx = f.Ctx[:h.CtxDepth]
}

// performUnwind drives a non-local transfer to completion, pausing at
// each finally block on the way. A nil return means execution
// continues at the frame's new IP.
func (vm *VM) performUnwind(u *Unwind) *Outcome {
	for {
		if len(vm.Frames) == 0 {
			switch u.Kind {
			case unwindReturn:
				vm.result = u.Val
				return nil
			case unwindRaise:
				vm.tb = append(vm.tb, "(End of traceback)")
				tb := vm.tb
				vm.tb = nil
				return &Outcome{
					Kind:      OutUncaught,
					Err:       types.RaiseValue(u.Code, u.Msg, u.Extra),
					Traceback: tb,
				}
			default:
				// A break or continue with no matching loop cannot be
				// produced by the compiler.
				return &Outcome{Kind: OutUncaught, Err: types.Err(types.E_NONE)}
			}
		}
		f := vm.frame()

		switch u.Kind {
		case unwindRaise:
			if vm.raiseInFrame(f, u) {
				return nil
			}
			// No handler here: note the frame in the traceback, pop it,
			// and continue in the caller. With the caller's debug flag
			// off the error becomes the call expression's value.
			vm.noteTracebackFrame(f, u)
			vm.SP = f.BaseSP
			vm.Frames = vm.Frames[:len(vm.Frames)-1]
			if len(vm.Frames) > 0 {
				caller := vm.frame()
				if !vm.frameHasRelevantHandler(caller, u.Code) && !caller.Debug {
					vm.tb = nil
					vm.push(types.NewErr(u.Code))
					return nil
				}
			}

		case unwindReturn:
			if vm.runFinallyAbove(f, 0, u) {
				return nil
			}
			vm.SP = f.BaseSP
			vm.Frames = vm.Frames[:len(vm.Frames)-1]
			if len(vm.Frames) == 0 {
				vm.result = u.Val
				return nil
			}
			vm.push(u.Val)
			return nil

		case unwindBreak, unwindContinue:
			li := vm.findLoop(f, u.Label)
			if li < 0 {
				// Label resolution failed at run time; treat as an
				// error raise.
				u = &Unwind{Kind: unwindRaise, Code: types.E_INVARG, Msg: "No such loop"}
				continue
			}
			loop := f.Loops[li]
			if vm.runFinallyAbove(f, loop.HandlerDepth, u) {
				return nil
			}
			f.Ctx = f.Ctx[:loop.CtxDepth]
			if u.Kind == unwindBreak {
				vm.SP = loop.BaseSP
				f.Loops = f.Loops[:li]
				f.IP = loop.BreakAddr
			} else {
				vm.SP = loop.BaseSP + loop.IterSlots
				f.Loops = f.Loops[:li+1]
				f.IP = loop.ContAddr
			}
			return nil
		}
	}
}

// raiseInFrame finds the first relevant handler in the frame: a finally
// (runs, pausing the raise) or a matching except/catch (handles it).
// Returns true when execution continues inside this frame.
func (vm *VM) raiseInFrame(f *Frame, u *Unwind) bool {
	for i := len(f.Handlers) - 1; i >= 0; i-- {
		h := f.Handlers[i]
		switch h.Kind {
		case handlerFinally:
			f.Handlers = f.Handlers[:i]
			vm.restoreTo(f, h)
			f.Pending = append(f.Pending, u)
			f.IP = h.Addr
			return true

		case handlerCatch:
			if !codesMatch(h.Codes, u.Code) {
				continue
			}
			f.Handlers = f.Handlers[:i]
			vm.restoreTo(f, h)
			vm.tb = nil
			vm.push(types.NewErr(u.Code))
			f.IP = h.Addr
			return true

		case handlerExcept:
			for _, arm := range h.Arms {
				if !codesMatch(arm.Codes, u.Code) {
					continue
				}
				f.Handlers = f.Handlers[:i]
				vm.restoreTo(f, h)
				if arm.VarIdx != noOperand && arm.VarIdx < len(f.Locals) {
					f.Locals[arm.VarIdx] = vm.exceptionValue(u)
				}
				vm.tb = nil
				f.IP = arm.Addr
				return true
			}
		}
	}
	return false
}

// runFinallyAbove triggers the topmost finally handler above depth,
// discarding dead except handlers on the way. Returns true when a
// finally took over.
func (vm *VM) runFinallyAbove(f *Frame, depth int, u *Unwind) bool {
	for len(f.Handlers) > depth {
		h := f.Handlers[len(f.Handlers)-1]
		f.Handlers = f.Handlers[:len(f.Handlers)-1]
		if h.Kind == handlerFinally {
			vm.restoreTo(f, h)
			f.Pending = append(f.Pending, u)
			f.IP = h.Addr
			return true
		}
	}
	return false
}

func (vm *VM) findLoop(f *Frame, label string) int {
	for i := len(f.Loops) - 1; i >= 0; i-- {
		if label == "" || f.Loops[i].Name == label {
			return i
		}
	}
	return -1
}

// exceptionValue builds the {code, message, value, traceback} list an
// except clause binds.
func (vm *VM) exceptionValue(u *Unwind) types.Value {
	tb := make([]types.Value, len(vm.tb))
	for i, line := range vm.tb {
		tb[i] = types.NewStr(line)
	}
	extra := u.Extra
	if extra == nil {
		extra = types.NewInt(0)
	}
	return types.NewList([]types.Value{
		types.NewErr(u.Code),
		types.NewStr(u.Msg),
		extra,
		types.NewList(tb),
	})
}

func (vm *VM) noteTracebackFrame(f *Frame, u *Unwind) {
	where := fmt.Sprintf("#%d:%s", int64(f.VerbLoc), f.VerbName)
	if len(vm.tb) == 0 {
		vm.tb = append(vm.tb, fmt.Sprintf("%s (this == #%d), line %d:  %s",
			where, int64(f.This), vm.curLine(), u.Msg))
	} else {
		vm.tb = append(vm.tb, fmt.Sprintf("... called from %s (this == #%d)",
			where, int64(f.This)))
	}
}

// taskContext builds the builtin-call context from the current frame.
func (vm *VM) taskContext() *types.TaskContext {
	f := vm.frame()
	return &types.TaskContext{
		Player:     f.Player,
		Programmer: f.Programmer,
		ThisObj:    f.This,
		Verb:       f.VerbName,
		VerbLoc:    f.VerbLoc,
		IsWizard:   vm.Store != nil && vm.Store.IsWizard(f.Programmer),
		Task:       &vmTaskControl{vm: vm},
	}
}

// vmTaskControl adapts the machine to types.TaskControl.
type vmTaskControl struct {
	vm *VM
}

func (t *vmTaskControl) TaskID() int64        { return t.vm.TaskID }
func (t *vmTaskControl) TicksLeft() int64     { return t.vm.TicksLeft() }
func (t *vmTaskControl) SecondsLeft() float64 { return t.vm.SecondsLeft() }

func (t *vmTaskControl) Callers() types.Value {
	frames := t.vm.Frames
	var out []types.Value
	for i := len(frames) - 2; i >= 0; i-- {
		f := frames[i]
		out = append(out, types.NewList([]types.Value{
			types.NewObj(f.This),
			types.NewStr(f.VerbName),
			types.NewObj(f.Programmer),
			types.NewObj(f.VerbLoc),
			types.NewObj(f.Player),
			types.NewInt(int64(f.Prog.lineAt(f.IP))),
		}))
	}
	return types.NewList(out)
}

func (t *vmTaskControl) CallerPerms() types.ObjID {
	frames := t.vm.Frames
	if len(frames) < 2 {
		return types.ObjNothing
	}
	return frames[len(frames)-2].Programmer
}

func (t *vmTaskControl) SetPerms(who types.ObjID) {
	t.vm.frame().Programmer = who
}

func (p *Program) lineAt(ip int) int {
	if ip > 0 {
		ip--
	}
	if ip >= 0 && ip < len(p.Lines) {
		return p.Lines[ip]
	}
	return 0
}
