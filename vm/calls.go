package vm

import (
	"fmt"

	"etamoo/db"
	"etamoo/types"
)

// callBuiltin invokes a builtin function, translating its result into
// a push, a raise, or a scheduler yield.
func (vm *VM) callBuiltin(name string, args types.ListValue) *Outcome {
	if vm.Builtins == nil || !vm.Builtins.Exists(name) {
		out, _ := vm.raise(types.E_VERBNF, fmt.Sprintf("Unknown built-in function: %s", name), nil)
		return out
	}
	res := vm.Builtins.Call(name, vm.taskContext(), args.Elements())
	switch res.Flow {
	case types.FlowNormal:
		v := res.Val
		if v == nil {
			v = types.NewInt(0)
		}
		vm.push(v)
		return nil
	case types.FlowError:
		out, _ := vm.raise(res.Error, res.Msg, res.Extra)
		return out
	case types.FlowSuspend:
		secs, _ := types.ToFloat(res.Val)
		return &Outcome{Kind: OutSuspend, Seconds: secs}
	case types.FlowRead:
		conn, _ := types.ToObj(res.Val)
		return &Outcome{Kind: OutRead, Conn: conn}
	}
	vm.push(types.NewInt(0))
	return nil
}

// CompiledProgram returns the verb's bytecode, compiling and caching on
// first use.
func CompiledProgram(verb *db.Verb) (*Program, error) {
	if prog, ok := verb.Compiled.(*Program); ok && prog != nil {
		return prog, nil
	}
	if verb.Program == nil {
		return nil, fmt.Errorf("verb not programmed")
	}
	prog, err := Compile(verb.Program)
	if err != nil {
		return nil, err
	}
	verb.Compiled = prog
	return prog, nil
}

// callVerb dispatches obj:name(args): resolve through the parent
// chain, then push a new activation.
func (vm *VM) callVerb(objVal, nameVal, argsVal types.Value) *Outcome {
	obj, ok := objVal.(types.ObjValue)
	if !ok {
		out, _ := vm.raise(types.E_TYPE, "", nil)
		return out
	}
	name, ok := nameVal.(types.StrValue)
	if !ok {
		out, _ := vm.raise(types.E_TYPE, "", nil)
		return out
	}
	if vm.Store == nil || !vm.Store.Valid(obj.Val) {
		out, _ := vm.raise(types.E_INVIND, "", nil)
		return out
	}

	verb, loc, code := vm.Store.FindVerb(obj.Val, name.Value())
	if code != types.E_NONE {
		out, _ := vm.raise(code, "", nil)
		return out
	}
	return vm.enterVerb(verb, loc, obj.Val, name.Value(), argsVal)
}

// passVerb re-dispatches the running verb's name starting above its
// definition, keeping this unchanged.
func (vm *VM) passVerb(argsVal types.Value) *Outcome {
	f := vm.frame()
	loc := vm.Store.Get(f.VerbLoc)
	if loc == nil || loc.Parent < 0 {
		out, _ := vm.raise(types.E_VERBNF, "", nil)
		return out
	}
	verb, foundOn, code := vm.Store.FindVerb(loc.Parent, f.VerbName)
	if code != types.E_NONE {
		out, _ := vm.raise(code, "", nil)
		return out
	}
	return vm.enterVerb(verb, foundOn, f.This, f.VerbName, argsVal)
}

func (vm *VM) enterVerb(verb *db.Verb, loc, this types.ObjID, name string, argsVal types.Value) *Outcome {
	if _, ok := argsVal.(types.ListValue); !ok {
		out, _ := vm.raise(types.E_TYPE, "", nil)
		return out
	}
	if !verb.Perms.Has(db.VerbExecute) {
		out, _ := vm.raise(types.E_VERBNF, "", nil)
		return out
	}
	if len(vm.Frames) >= vm.MaxDepth {
		out, _ := vm.raise(types.E_MAXREC, "", nil)
		return out
	}
	prog, err := CompiledProgram(verb)
	if err != nil {
		out, _ := vm.raise(types.E_VERBNF, err.Error(), nil)
		return out
	}
	caller := vm.frame().This
	vm.PushFrame(prog, this, caller, verb.Owner, name, loc,
		verb.Perms.Has(db.VerbDebug), argsVal)
	return nil
}

// forkTask snapshots the current frame and hands the child body to the
// scheduler; the child's task id lands in the labeled variable of both
// parent and child.
func (vm *VM) forkTask(forkIdx, varIdx int) *Outcome {
	f := vm.frame()
	delayVal := vm.pop()
	var delay float64
	switch d := delayVal.(type) {
	case types.IntValue:
		delay = float64(d.Val)
	case types.FloatValue:
		delay = d.Val
	default:
		out, _ := vm.raise(types.E_TYPE, "", nil)
		return out
	}
	if delay < 0 {
		out, _ := vm.raise(types.E_INVARG, "Negative fork delay", nil)
		return out
	}
	if vm.Hooks == nil {
		out, _ := vm.raise(types.E_INVARG, "Task forking unavailable", nil)
		return out
	}

	locals := make([]types.Value, len(f.Locals))
	copy(locals, f.Locals)
	spec := &ForkSpec{
		Prog:       f.Prog.Forks[forkIdx],
		Locals:     locals,
		Delay:      delay,
		This:       f.This,
		Player:     f.Player,
		Caller:     f.Caller,
		Programmer: f.Programmer,
		VerbName:   f.VerbName,
		VerbLoc:    f.VerbLoc,
		Debug:      f.Debug,
		VarIdx:     varIdx,
		Cmd:        vm.Cmd,
	}
	id := vm.Hooks.Fork(spec)
	if varIdx != noOperand {
		f.Locals[varIdx] = types.NewInt(id)
	}
	return nil
}

// getProp reads obj.name with the running verb's permissions.
func (vm *VM) getProp(objVal, nameVal types.Value) types.Result {
	obj, ok := objVal.(types.ObjValue)
	if !ok {
		return types.Err(types.E_INVIND)
	}
	name, ok := nameVal.(types.StrValue)
	if !ok {
		return types.Err(types.E_TYPE)
	}
	if vm.Store == nil || !vm.Store.Valid(obj.Val) {
		return types.Err(types.E_INVIND)
	}

	if db.IsBuiltinProp(name.Value()) {
		v, code := vm.Store.GetBuiltinProp(obj.Val, name.Value())
		if code != types.E_NONE {
			return types.Err(code)
		}
		return types.Ok(v)
	}

	entry, def, _, code := vm.Store.LookupProperty(obj.Val, name.Value())
	if code != types.E_NONE {
		return types.Err(code)
	}
	perms := entry
	if perms == nil {
		perms = def
	}
	if !vm.propReadable(perms) {
		return types.Err(types.E_PERM)
	}
	v, code := vm.Store.GetProperty(obj.Val, name.Value())
	if code != types.E_NONE {
		return types.Err(code)
	}
	return types.Ok(v)
}

// setProp writes obj.name.
func (vm *VM) setProp(objVal, nameVal, val types.Value) types.Result {
	obj, ok := objVal.(types.ObjValue)
	if !ok {
		return types.Err(types.E_INVIND)
	}
	name, ok := nameVal.(types.StrValue)
	if !ok {
		return types.Err(types.E_TYPE)
	}
	if vm.Store == nil || !vm.Store.Valid(obj.Val) {
		return types.Err(types.E_INVIND)
	}
	progr := vm.frame().Programmer
	wizard := vm.Store.IsWizard(progr)

	if db.IsBuiltinProp(name.Value()) {
		if !vm.builtinPropWritable(obj.Val, name.Value(), wizard, progr) {
			return types.Err(types.E_PERM)
		}
		code := vm.Store.SetBuiltinProp(obj.Val, name.Value(), val)
		if code != types.E_NONE {
			return types.Err(code)
		}
		return types.Ok(val)
	}

	entry, def, _, code := vm.Store.LookupProperty(obj.Val, name.Value())
	if code != types.E_NONE {
		return types.Err(code)
	}
	perms := entry
	if perms == nil {
		perms = def
	}
	if !wizard && !(perms != nil && (perms.Owner == progr || perms.Perms.Has(db.PropWrite))) {
		return types.Err(types.E_PERM)
	}
	code = vm.Store.SetProperty(obj.Val, name.Value(), val)
	if code != types.E_NONE {
		return types.Err(code)
	}
	return types.Ok(val)
}

func (vm *VM) propReadable(p *db.Property) bool {
	if p == nil {
		return true
	}
	if p.Perms.Has(db.PropRead) {
		return true
	}
	progr := vm.frame().Programmer
	return p.Owner == progr || vm.Store.IsWizard(progr)
}

func (vm *VM) builtinPropWritable(obj types.ObjID, name string, wizard bool, progr types.ObjID) bool {
	if wizard {
		return true
	}
	switch name {
	case "programmer", "wizard":
		return false
	}
	o := vm.Store.Get(obj)
	return o != nil && o.Owner == progr
}
