package builtins

import (
	"etamoo/db"
	"etamoo/types"
)

func registerObjects(r *Registry) {
	r.Register("create", sig(1, 2, types.TYPE_OBJ, types.TYPE_OBJ), bfCreate)
	r.Register("recycle", sig(1, 1, types.TYPE_OBJ), bfRecycle)
	r.Register("valid", sig(1, 1, types.TYPE_OBJ), bfValid)
	r.Register("parent", sig(1, 1, types.TYPE_OBJ), bfParent)
	r.Register("children", sig(1, 1, types.TYPE_OBJ), bfChildren)
	r.Register("chparent", sig(2, 2, types.TYPE_OBJ, types.TYPE_OBJ), bfChparent)
	r.Register("max_object", sig(0, 0), bfMaxObject)
	r.Register("players", sig(0, 0), bfPlayers)
	r.Register("is_player", sig(1, 1, types.TYPE_OBJ), bfIsPlayer)
	r.Register("set_player_flag", sig(2, 2, types.TYPE_OBJ, types.TYPE_ANY), bfSetPlayerFlag)
	r.Register("move", sig(2, 2, types.TYPE_OBJ, types.TYPE_OBJ), bfMove)
}

func objArg(v types.Value) types.ObjID {
	return v.(types.ObjValue).Val
}

// bfCreate makes a child of parent. The parent must be fertile (or
// owned/wizarded by the programmer); a wizard may name another owner.
func bfCreate(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	parent := objArg(args[0])
	if parent != types.ObjNothing {
		p := r.Store.Get(parent)
		if p == nil {
			return types.Err(types.E_INVARG)
		}
		if !ctx.IsWizard && p.Owner != ctx.Programmer && !p.Flags.Has(db.FlagFertile) {
			return types.Err(types.E_PERM)
		}
	}
	owner := ctx.Programmer
	if len(args) > 1 {
		want := objArg(args[1])
		if want != ctx.Programmer && !ctx.IsWizard {
			return types.Err(types.E_PERM)
		}
		owner = want
	}

	// An ownership quota, when present, must cover the new object.
	if !ctx.IsWizard {
		if q, code := r.Store.GetProperty(owner, "ownership_quota"); code == types.E_NONE {
			if qi, ok := q.(types.IntValue); ok {
				if qi.Val <= 0 {
					return types.Err(types.E_QUOTA)
				}
				r.Store.SetProperty(owner, "ownership_quota", types.NewInt(qi.Val-1))
			}
		}
	}

	obj, err := r.Store.Create(parent, owner)
	if err != nil {
		return types.Err(types.E_INVARG)
	}
	if owner == types.ObjNothing {
		// An object created by #-1 owns itself.
		r.Store.Modify(obj.ID, func(o *db.Object) error {
			o.Owner = o.ID
			return nil
		})
	}
	r.CallVerb(obj.ID, "initialize", nil, ctx)
	return types.Ok(types.NewObj(obj.ID))
}

func bfRecycle(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	id := objArg(args[0])
	obj := r.Store.Get(id)
	if obj == nil {
		return types.Err(types.E_INVARG)
	}
	if !ctx.IsWizard && obj.Owner != ctx.Programmer {
		return types.Err(types.E_PERM)
	}
	r.CallVerb(id, "recycle", nil, ctx)

	// Refund the owner's quota if one is tracked.
	if q, code := r.Store.GetProperty(obj.Owner, "ownership_quota"); code == types.E_NONE {
		if qi, ok := q.(types.IntValue); ok {
			r.Store.SetProperty(obj.Owner, "ownership_quota", types.NewInt(qi.Val+1))
		}
	}
	if err := r.Store.Recycle(id); err != nil {
		return types.Err(types.E_INVARG)
	}
	return types.Ok(types.NewInt(0))
}

func bfValid(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if r.Store.Valid(objArg(args[0])) {
		return types.Ok(types.NewInt(1))
	}
	return types.Ok(types.NewInt(0))
}

func bfParent(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	obj := r.Store.Get(objArg(args[0]))
	if obj == nil {
		return types.Err(types.E_INVARG)
	}
	return types.Ok(types.NewObj(obj.Parent))
}

func bfChildren(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	obj := r.Store.Get(objArg(args[0]))
	if obj == nil {
		return types.Err(types.E_INVARG)
	}
	out := make([]types.Value, len(obj.Children))
	for i, c := range obj.Children {
		out[i] = types.NewObj(c)
	}
	return types.Ok(types.NewList(out))
}

func bfChparent(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	id := objArg(args[0])
	newParent := objArg(args[1])
	obj := r.Store.Get(id)
	if obj == nil {
		return types.Err(types.E_INVARG)
	}
	if !ctx.IsWizard {
		if obj.Owner != ctx.Programmer {
			return types.Err(types.E_PERM)
		}
		if newParent != types.ObjNothing {
			np := r.Store.Get(newParent)
			if np == nil {
				return types.Err(types.E_INVARG)
			}
			if np.Owner != ctx.Programmer && !np.Flags.Has(db.FlagFertile) {
				return types.Err(types.E_PERM)
			}
		}
	}
	if code := r.Store.ChParent(id, newParent); code != types.E_NONE {
		return types.Err(code)
	}
	return types.Ok(types.NewInt(0))
}

func bfMaxObject(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	return types.Ok(types.NewObj(r.Store.MaxObject()))
}

func bfPlayers(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	ids := r.Store.Players()
	out := make([]types.Value, len(ids))
	for i, id := range ids {
		out[i] = types.NewObj(id)
	}
	return types.Ok(types.NewList(out))
}

func bfIsPlayer(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	obj := r.Store.Get(objArg(args[0]))
	if obj == nil {
		return types.Err(types.E_INVARG)
	}
	if obj.Flags.Has(db.FlagPlayer) {
		return types.Ok(types.NewInt(1))
	}
	return types.Ok(types.NewInt(0))
}

func bfSetPlayerFlag(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if res := wizardOnly(ctx); res.IsError() {
		return res
	}
	id := objArg(args[0])
	on := args[1].Truthy()
	err := r.Store.Modify(id, func(o *db.Object) error {
		if on {
			o.Flags = o.Flags.Set(db.FlagPlayer)
		} else {
			o.Flags = o.Flags.Clear(db.FlagPlayer)
		}
		return nil
	})
	if err != nil {
		return types.Err(types.E_INVARG)
	}
	return types.Ok(types.NewInt(0))
}

// bfMove relocates what into where, asking the destination's accept
// verb first (not for wizards) and firing exitfunc/enterfunc afterward.
func bfMove(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	what := objArg(args[0])
	where := objArg(args[1])
	obj := r.Store.Get(what)
	if obj == nil {
		return types.Err(types.E_INVARG)
	}
	if !ctx.IsWizard && obj.Owner != ctx.Programmer {
		return types.Err(types.E_PERM)
	}
	if where != types.ObjNothing {
		if r.Store.Get(where) == nil {
			return types.Err(types.E_INVARG)
		}
		if !ctx.IsWizard {
			res := r.CallVerb(where, "accept", []types.Value{types.NewObj(what)}, ctx)
			switch res.Flow {
			case types.FlowNormal:
				if !res.Val.Truthy() {
					return types.Err(types.E_NACC)
				}
			case types.FlowError:
				if res.Error == types.E_VERBNF {
					return types.Err(types.E_NACC)
				}
				return res
			}
		}
	}

	from := obj.Location
	if code := r.Store.MoveRaw(what, where); code != types.E_NONE {
		return types.Err(code)
	}
	if from != types.ObjNothing && r.Store.Valid(from) {
		r.CallVerb(from, "exitfunc", []types.Value{types.NewObj(what)}, ctx)
	}
	if where != types.ObjNothing && r.Store.Valid(where) {
		r.CallVerb(where, "enterfunc", []types.Value{types.NewObj(what)}, ctx)
	}
	return types.Ok(types.NewInt(0))
}
