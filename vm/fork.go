package vm

import (
	"etamoo/db"
	"etamoo/types"
)

// NewForked builds the machine for a forked task from its captured
// spec: the fork body program with the parent's locals snapshot, the
// parent's frame context, and the child task id already bound to the
// fork label.
func NewForked(store *db.Store, builtins BuiltinCaller, spec *ForkSpec, childID int64) *VM {
	m := New(store, builtins)
	m.TaskID = childID
	m.Player = spec.Player
	m.Cmd = spec.Cmd

	locals := spec.Locals
	if spec.VarIdx != noOperand && spec.VarIdx < len(locals) {
		locals[spec.VarIdx] = types.NewInt(childID)
	}
	m.Frames = append(m.Frames, &Frame{
		Prog:       spec.Prog,
		Locals:     locals,
		This:       spec.This,
		Player:     spec.Player,
		Caller:     spec.Caller,
		Programmer: spec.Programmer,
		VerbName:   spec.VerbName,
		VerbLoc:    spec.VerbLoc,
		Debug:      spec.Debug,
	})
	return m
}
