package builtins

import (
	"etamoo/types"
)

func registerLists(r *Registry) {
	r.Register("is_member", sig(2, 2, types.TYPE_ANY, types.TYPE_LIST), bfIsMember)
	r.Register("listinsert", sig(2, 3, types.TYPE_LIST, types.TYPE_ANY, types.TYPE_INT), bfListinsert)
	r.Register("listappend", sig(2, 3, types.TYPE_LIST, types.TYPE_ANY, types.TYPE_INT), bfListappend)
	r.Register("listdelete", sig(2, 2, types.TYPE_LIST, types.TYPE_INT), bfListdelete)
	r.Register("listset", sig(3, 3, types.TYPE_LIST, types.TYPE_ANY, types.TYPE_INT), bfListset)
	r.Register("setadd", sig(2, 2, types.TYPE_LIST, types.TYPE_ANY), bfSetadd)
	r.Register("setremove", sig(2, 2, types.TYPE_LIST, types.TYPE_ANY), bfSetremove)
}

func bfIsMember(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	list := args[1].(types.ListValue)
	return types.Ok(types.NewInt(int64(list.IsMember(args[0]))))
}

// listinsert(list, value[, index]): value lands before index; with no
// index it goes first.
func bfListinsert(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	list := args[0].(types.ListValue)
	index := 1
	if len(args) > 2 {
		index = int(args[2].(types.IntValue).Val)
		if index < 1 || index > list.Len()+1 {
			return types.Err(types.E_RANGE)
		}
	}
	return types.Ok(list.InsertAt(index, args[1]))
}

// listappend(list, value[, index]): value lands after index; with no
// index it goes last.
func bfListappend(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	list := args[0].(types.ListValue)
	index := list.Len()
	if len(args) > 2 {
		index = int(args[2].(types.IntValue).Val)
		if index < 0 || index > list.Len() {
			return types.Err(types.E_RANGE)
		}
	}
	return types.Ok(list.InsertAt(index+1, args[1]))
}

func bfListdelete(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	list := args[0].(types.ListValue)
	index := int(args[1].(types.IntValue).Val)
	if index < 1 || index > list.Len() {
		return types.Err(types.E_RANGE)
	}
	return types.Ok(list.DeleteAt(index))
}

func bfListset(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	list := args[0].(types.ListValue)
	index := int(args[2].(types.IntValue).Val)
	if index < 1 || index > list.Len() {
		return types.Err(types.E_RANGE)
	}
	return types.Ok(list.Set(index, args[1]))
}

func bfSetadd(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	list := args[0].(types.ListValue)
	if list.IsMember(args[1]) != 0 {
		return types.Ok(list)
	}
	return types.Ok(list.Append(args[1]))
}

func bfSetremove(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	list := args[0].(types.ListValue)
	if i := list.IsMember(args[1]); i != 0 {
		return types.Ok(list.DeleteAt(i))
	}
	return types.Ok(list)
}
