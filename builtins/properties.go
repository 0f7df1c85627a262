package builtins

import (
	"etamoo/db"
	"etamoo/types"
)

func registerProperties(r *Registry) {
	r.Register("properties", sig(1, 1, types.TYPE_OBJ), bfProperties)
	r.Register("property_info", sig(2, 2, types.TYPE_OBJ, types.TYPE_STR), bfPropertyInfo)
	r.Register("set_property_info", sig(3, 3, types.TYPE_OBJ, types.TYPE_STR, types.TYPE_LIST), bfSetPropertyInfo)
	r.Register("add_property", sig(4, 4, types.TYPE_OBJ, types.TYPE_STR, types.TYPE_ANY, types.TYPE_LIST), bfAddProperty)
	r.Register("delete_property", sig(2, 2, types.TYPE_OBJ, types.TYPE_STR), bfDeleteProperty)
	r.Register("clear_property", sig(2, 2, types.TYPE_OBJ, types.TYPE_STR), bfClearProperty)
	r.Register("is_clear_property", sig(2, 2, types.TYPE_OBJ, types.TYPE_STR), bfIsClearProperty)
}

func bfProperties(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	id := objArg(args[0])
	obj := r.Store.Get(id)
	if obj == nil {
		return types.Err(types.E_INVARG)
	}
	if !ctx.IsWizard && obj.Owner != ctx.Programmer && !obj.Flags.Has(db.FlagRead) {
		return types.Err(types.E_PERM)
	}
	names, code := r.Store.PropertyNames(id)
	if code != types.E_NONE {
		return types.Err(code)
	}
	out := make([]types.Value, len(names))
	for i, n := range names {
		out[i] = types.NewStr(n)
	}
	return types.Ok(types.NewList(out))
}

// lookupVisible fetches the property entry governing perms for info
// operations, refusing builtin attribute names.
func (r *Registry) lookupVisible(ctx *types.TaskContext, id types.ObjID, name string) (*db.Property, types.Result) {
	if db.IsBuiltinProp(name) {
		return nil, types.Err(types.E_INVARG)
	}
	entry, def, _, code := r.Store.LookupProperty(id, name)
	if code != types.E_NONE {
		return nil, types.Err(code)
	}
	p := entry
	if p == nil {
		p = def
	}
	if p == nil {
		return nil, types.Err(types.E_PROPNF)
	}
	if !ctx.IsWizard && p.Owner != ctx.Programmer && !p.Perms.Has(db.PropRead) {
		return nil, types.Err(types.E_PERM)
	}
	return p, types.Result{}
}

func bfPropertyInfo(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	p, res := r.lookupVisible(ctx, objArg(args[0]), args[1].(types.StrValue).Value())
	if res.IsError() {
		return res
	}
	return types.Ok(types.NewList([]types.Value{
		types.NewObj(p.Owner),
		types.NewStr(p.Perms.String()),
	}))
}

func parsePropInfo(info types.ListValue) (types.ObjID, db.PropPerms, string, types.ErrorCode) {
	if info.Len() < 2 || info.Len() > 3 {
		return 0, 0, "", types.E_INVARG
	}
	owner, ok := info.Get(1).(types.ObjValue)
	if !ok {
		return 0, 0, "", types.E_TYPE
	}
	permsStr, ok := info.Get(2).(types.StrValue)
	if !ok {
		return 0, 0, "", types.E_TYPE
	}
	perms, valid := db.ParsePropPerms(permsStr.Value())
	if !valid {
		return 0, 0, "", types.E_INVARG
	}
	newName := ""
	if info.Len() == 3 {
		n, ok := info.Get(3).(types.StrValue)
		if !ok {
			return 0, 0, "", types.E_TYPE
		}
		newName = n.Value()
	}
	return owner.Val, perms, newName, types.E_NONE
}

func bfSetPropertyInfo(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	id := objArg(args[0])
	name := args[1].(types.StrValue).Value()
	owner, perms, newName, code := parsePropInfo(args[2].(types.ListValue))
	if code != types.E_NONE {
		return types.Err(code)
	}
	if db.IsBuiltinProp(name) {
		return types.Err(types.E_INVARG)
	}
	entry, def, _, lcode := r.Store.LookupProperty(id, name)
	if lcode != types.E_NONE {
		return types.Err(lcode)
	}
	p := entry
	if p == nil {
		p = def
	}
	if !ctx.IsWizard && p.Owner != ctx.Programmer && !p.Perms.Has(db.PropWrite) {
		return types.Err(types.E_PERM)
	}
	if owner != ctx.Programmer && !ctx.IsWizard {
		return types.Err(types.E_PERM)
	}
	p.Owner = owner
	p.Perms = perms
	if newName != "" {
		p.Name = newName
	}
	return types.Ok(types.NewInt(0))
}

func bfAddProperty(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	id := objArg(args[0])
	name := args[1].(types.StrValue).Value()
	info := args[3].(types.ListValue)
	if info.Len() != 2 {
		return types.Err(types.E_INVARG)
	}
	owner, perms, _, code := parsePropInfo(info)
	if code != types.E_NONE {
		return types.Err(code)
	}
	obj := r.Store.Get(id)
	if obj == nil {
		return types.Err(types.E_INVARG)
	}
	if !ctx.IsWizard && obj.Owner != ctx.Programmer && !obj.Flags.Has(db.FlagWrite) {
		return types.Err(types.E_PERM)
	}
	if owner != ctx.Programmer && !ctx.IsWizard {
		return types.Err(types.E_PERM)
	}
	if dbcode := r.Store.AddProperty(id, name, args[2], owner, perms); dbcode != types.E_NONE {
		return types.Err(dbcode)
	}
	return types.Ok(types.NewInt(0))
}

func bfDeleteProperty(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	id := objArg(args[0])
	name := args[1].(types.StrValue).Value()
	obj := r.Store.Get(id)
	if obj == nil {
		return types.Err(types.E_INVARG)
	}
	if !ctx.IsWizard && obj.Owner != ctx.Programmer {
		return types.Err(types.E_PERM)
	}
	if code := r.Store.DeleteProperty(id, name); code != types.E_NONE {
		return types.Err(code)
	}
	return types.Ok(types.NewInt(0))
}

func bfClearProperty(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	id := objArg(args[0])
	name := args[1].(types.StrValue).Value()
	p, res := r.lookupVisible(ctx, id, name)
	if res.IsError() {
		return res
	}
	if !ctx.IsWizard && p.Owner != ctx.Programmer && !p.Perms.Has(db.PropWrite) {
		return types.Err(types.E_PERM)
	}
	if code := r.Store.ClearProperty(id, name); code != types.E_NONE {
		return types.Err(code)
	}
	return types.Ok(types.NewInt(0))
}

func bfIsClearProperty(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	id := objArg(args[0])
	name := args[1].(types.StrValue).Value()
	if _, res := r.lookupVisible(ctx, id, name); res.IsError() {
		return res
	}
	clear, code := r.Store.IsClearProperty(id, name)
	if code != types.E_NONE {
		return types.Err(code)
	}
	if clear {
		return types.Ok(types.NewInt(1))
	}
	return types.Ok(types.NewInt(0))
}
