package builtins

import (
	"etamoo/types"
)

func registerGeneral(r *Registry) {
	r.Register("typeof", sig(1, 1), bfTypeof)
	r.Register("tostr", sig(0, -1), bfTostr)
	r.Register("toliteral", sig(1, 1), bfToliteral)
	r.Register("toint", sig(1, 1), bfToint)
	r.Register("tonum", sig(1, 1), bfToint)
	r.Register("toobj", sig(1, 1), bfToobj)
	r.Register("tofloat", sig(1, 1), bfTofloat)
	r.Register("equal", sig(2, 2), bfEqual)
	r.Register("value_bytes", sig(1, 1), bfValueBytes)
	r.Register("value_hash", sig(1, 1), bfValueHash)
	r.Register("raise", sig(1, 3, types.TYPE_ANY, types.TYPE_STR, types.TYPE_ANY), bfRaise)
}

func bfTypeof(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	return types.Ok(types.NewInt(int64(args[0].Type())))
}

func bfTostr(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	out := ""
	for _, a := range args {
		out += types.ToStr(a)
	}
	return types.Ok(types.NewStr(out))
}

func bfToliteral(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	return types.Ok(types.NewStr(types.ToLiteral(args[0])))
}

func bfToint(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	n, code := types.ToInt(args[0])
	if code != types.E_NONE {
		return types.Err(code)
	}
	return types.Ok(types.NewInt(n))
}

func bfToobj(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	id, code := types.ToObj(args[0])
	if code != types.E_NONE {
		return types.Err(code)
	}
	return types.Ok(types.NewObj(id))
}

func bfTofloat(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	f, code := types.ToFloat(args[0])
	if code != types.E_NONE {
		return types.Err(code)
	}
	return types.Ok(types.NewFloat(f))
}

func bfEqual(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if types.Indistinguishable(args[0], args[1]) {
		return types.Ok(types.NewInt(1))
	}
	return types.Ok(types.NewInt(0))
}

func bfValueBytes(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	return types.Ok(types.NewInt(int64(types.ValueBytes(args[0]))))
}

func bfValueHash(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	return types.Ok(types.NewStr(types.ValueHash(args[0])))
}

func bfRaise(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	code := types.E_NONE
	msg := ""
	if ev, ok := args[0].(types.ErrValue); ok {
		code = ev.Code
		msg = ev.Code.Message()
	} else {
		msg = types.ToStr(args[0])
	}
	if len(args) > 1 {
		msg = args[1].(types.StrValue).Value()
	}
	var extra types.Value
	if len(args) > 2 {
		extra = args[2]
	}
	return types.RaiseValue(code, msg, extra)
}
