package builtins

import (
	"strings"

	"etamoo/db"
	"etamoo/parser"
	"etamoo/types"
	"etamoo/vm"
)

func registerVerbs(r *Registry) {
	r.Register("verbs", sig(1, 1, types.TYPE_OBJ), bfVerbs)
	r.Register("verb_info", sig(2, 2, types.TYPE_OBJ, types.TYPE_ANY), bfVerbInfo)
	r.Register("set_verb_info", sig(3, 3, types.TYPE_OBJ, types.TYPE_ANY, types.TYPE_LIST), bfSetVerbInfo)
	r.Register("verb_args", sig(2, 2, types.TYPE_OBJ, types.TYPE_ANY), bfVerbArgs)
	r.Register("set_verb_args", sig(3, 3, types.TYPE_OBJ, types.TYPE_ANY, types.TYPE_LIST), bfSetVerbArgs)
	r.Register("verb_code", sig(2, 4, types.TYPE_OBJ, types.TYPE_ANY, types.TYPE_ANY, types.TYPE_ANY), bfVerbCode)
	r.Register("set_verb_code", sig(3, 3, types.TYPE_OBJ, types.TYPE_ANY, types.TYPE_LIST), bfSetVerbCode)
	r.Register("add_verb", sig(3, 3, types.TYPE_OBJ, types.TYPE_LIST, types.TYPE_LIST), bfAddVerb)
	r.Register("delete_verb", sig(2, 2, types.TYPE_OBJ, types.TYPE_ANY), bfDeleteVerb)
	r.Register("disassemble", sig(2, 2, types.TYPE_OBJ, types.TYPE_ANY), bfDisassemble)
}

func (r *Registry) verbForRead(ctx *types.TaskContext, objVal, desc types.Value) (*db.Verb, types.Result) {
	id := objArg(objVal)
	if !r.Store.Valid(id) {
		return nil, types.Err(types.E_INVARG)
	}
	verb, _, code := r.Store.GetVerb(id, desc)
	if code != types.E_NONE {
		return nil, types.Err(code)
	}
	if !ctx.IsWizard && verb.Owner != ctx.Programmer && !verb.Perms.Has(db.VerbRead) {
		return nil, types.Err(types.E_PERM)
	}
	return verb, types.Result{}
}

func (r *Registry) verbForWrite(ctx *types.TaskContext, objVal, desc types.Value) (*db.Verb, types.Result) {
	id := objArg(objVal)
	if !r.Store.Valid(id) {
		return nil, types.Err(types.E_INVARG)
	}
	verb, _, code := r.Store.GetVerb(id, desc)
	if code != types.E_NONE {
		return nil, types.Err(code)
	}
	if !ctx.IsWizard && verb.Owner != ctx.Programmer && !verb.Perms.Has(db.VerbWrite) {
		return nil, types.Err(types.E_PERM)
	}
	return verb, types.Result{}
}

func bfVerbs(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	id := objArg(args[0])
	obj := r.Store.Get(id)
	if obj == nil {
		return types.Err(types.E_INVARG)
	}
	if !ctx.IsWizard && obj.Owner != ctx.Programmer && !obj.Flags.Has(db.FlagRead) {
		return types.Err(types.E_PERM)
	}
	names, code := r.Store.VerbNames(id)
	if code != types.E_NONE {
		return types.Err(code)
	}
	out := make([]types.Value, len(names))
	for i, n := range names {
		out[i] = types.NewStr(n)
	}
	return types.Ok(types.NewList(out))
}

func bfVerbInfo(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	verb, res := r.verbForRead(ctx, args[0], args[1])
	if res.IsError() {
		return res
	}
	return types.Ok(types.NewList([]types.Value{
		types.NewObj(verb.Owner),
		types.NewStr(verb.Perms.String()),
		types.NewStr(verb.NamesString()),
	}))
}

func bfSetVerbInfo(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	verb, res := r.verbForWrite(ctx, args[0], args[1])
	if res.IsError() {
		return res
	}
	info := args[2].(types.ListValue)
	if info.Len() != 3 {
		return types.Err(types.E_INVARG)
	}
	owner, ok1 := info.Get(1).(types.ObjValue)
	permsStr, ok2 := info.Get(2).(types.StrValue)
	namesStr, ok3 := info.Get(3).(types.StrValue)
	if !ok1 || !ok2 || !ok3 {
		return types.Err(types.E_TYPE)
	}
	perms, valid := db.ParseVerbPerms(permsStr.Value())
	if !valid {
		return types.Err(types.E_INVARG)
	}
	names := strings.Fields(namesStr.Value())
	if len(names) == 0 {
		return types.Err(types.E_INVARG)
	}
	if owner.Val != ctx.Programmer && !ctx.IsWizard {
		return types.Err(types.E_PERM)
	}
	verb.Owner = owner.Val
	verb.Perms = perms
	verb.Names = names
	return types.Ok(types.NewInt(0))
}

func bfVerbArgs(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	verb, res := r.verbForRead(ctx, args[0], args[1])
	if res.IsError() {
		return res
	}
	return types.Ok(types.NewList([]types.Value{
		types.NewStr(verb.Args.Dobj.String()),
		types.NewStr(db.PrepName(verb.Args.Prep)),
		types.NewStr(verb.Args.Iobj.String()),
	}))
}

func parseVerbArgs(info types.ListValue) (db.VerbArgs, types.ErrorCode) {
	var va db.VerbArgs
	if info.Len() != 3 {
		return va, types.E_INVARG
	}
	dobjStr, ok1 := info.Get(1).(types.StrValue)
	prepStr, ok2 := info.Get(2).(types.StrValue)
	iobjStr, ok3 := info.Get(3).(types.StrValue)
	if !ok1 || !ok2 || !ok3 {
		return va, types.E_TYPE
	}
	var valid bool
	if va.Dobj, valid = db.ParseArgSpec(dobjStr.Value()); !valid {
		return va, types.E_INVARG
	}
	if va.Prep, valid = db.ParsePrep(prepStr.Value()); !valid {
		return va, types.E_INVARG
	}
	if va.Iobj, valid = db.ParseArgSpec(iobjStr.Value()); !valid {
		return va, types.E_INVARG
	}
	return va, types.E_NONE
}

func bfSetVerbArgs(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	verb, res := r.verbForWrite(ctx, args[0], args[1])
	if res.IsError() {
		return res
	}
	va, code := parseVerbArgs(args[2].(types.ListValue))
	if code != types.E_NONE {
		return types.Err(code)
	}
	verb.Args = va
	return types.Ok(types.NewInt(0))
}

func bfVerbCode(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	verb, res := r.verbForRead(ctx, args[0], args[1])
	if res.IsError() {
		return res
	}
	if verb.Program == nil {
		return types.Ok(types.NewEmptyList())
	}
	lines := parser.Unparse(verb.Program)
	out := make([]types.Value, len(lines))
	for i, l := range lines {
		out[i] = types.NewStr(l)
	}
	return types.Ok(types.NewList(out))
}

// bfSetVerbCode programs a verb; the result is the (possibly empty)
// list of compiler diagnostics.
func bfSetVerbCode(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if obj := r.Store.Get(ctx.Programmer); obj == nil || !obj.IsProgrammer() {
		if !ctx.IsWizard {
			return types.Err(types.E_PERM)
		}
	}
	verb, res := r.verbForWrite(ctx, args[0], args[1])
	if res.IsError() {
		return res
	}
	codeList := args[2].(types.ListValue)
	lines := make([]string, 0, codeList.Len())
	for _, v := range codeList.Elements() {
		s, ok := v.(types.StrValue)
		if !ok {
			return types.Err(types.E_TYPE)
		}
		lines = append(lines, s.Value())
	}
	diags := db.ProgramVerb(verb, lines)
	out := make([]types.Value, len(diags))
	for i, d := range diags {
		out[i] = types.NewStr(d)
	}
	return types.Ok(types.NewList(out))
}

func bfAddVerb(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	id := objArg(args[0])
	obj := r.Store.Get(id)
	if obj == nil {
		return types.Err(types.E_INVARG)
	}
	if !ctx.IsWizard && obj.Owner != ctx.Programmer && !obj.Flags.Has(db.FlagWrite) {
		return types.Err(types.E_PERM)
	}

	info := args[1].(types.ListValue)
	if info.Len() != 3 {
		return types.Err(types.E_INVARG)
	}
	owner, ok1 := info.Get(1).(types.ObjValue)
	permsStr, ok2 := info.Get(2).(types.StrValue)
	namesStr, ok3 := info.Get(3).(types.StrValue)
	if !ok1 || !ok2 || !ok3 {
		return types.Err(types.E_TYPE)
	}
	perms, valid := db.ParseVerbPerms(permsStr.Value())
	if !valid {
		return types.Err(types.E_INVARG)
	}
	names := strings.Fields(namesStr.Value())
	if len(names) == 0 {
		return types.Err(types.E_INVARG)
	}
	if owner.Val != ctx.Programmer && !ctx.IsWizard {
		return types.Err(types.E_PERM)
	}
	va, code := parseVerbArgs(args[2].(types.ListValue))
	if code != types.E_NONE {
		return types.Err(code)
	}

	index, dbcode := r.Store.AddVerb(id, &db.Verb{
		Names: names,
		Owner: owner.Val,
		Perms: perms,
		Args:  va,
	})
	if dbcode != types.E_NONE {
		return types.Err(dbcode)
	}
	return types.Ok(types.NewInt(int64(index)))
}

func bfDeleteVerb(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if _, res := r.verbForWrite(ctx, args[0], args[1]); res.IsError() {
		return res
	}
	if code := r.Store.DeleteVerb(objArg(args[0]), args[1]); code != types.E_NONE {
		return types.Err(code)
	}
	return types.Ok(types.NewInt(0))
}

func bfDisassemble(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	verb, res := r.verbForRead(ctx, args[0], args[1])
	if res.IsError() {
		return res
	}
	prog, err := vm.CompiledProgram(verb)
	if err != nil {
		return types.Err(types.E_INVARG)
	}
	lines := prog.Disassemble()
	out := make([]types.Value, len(lines))
	for i, l := range lines {
		out[i] = types.NewStr(l)
	}
	return types.Ok(types.NewList(out))
}
