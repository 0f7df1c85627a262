package builtins

import (
	"etamoo/types"
)

func registerNetwork(r *Registry) {
	r.Register("notify", sig(2, 3, types.TYPE_OBJ, types.TYPE_STR, types.TYPE_ANY), bfNotify)
	r.Register("connected_players", sig(0, 1, types.TYPE_ANY), bfConnectedPlayers)
	r.Register("connected_seconds", sig(1, 1, types.TYPE_OBJ), bfConnectedSeconds)
	r.Register("idle_seconds", sig(1, 1, types.TYPE_OBJ), bfIdleSeconds)
	r.Register("boot_player", sig(1, 1, types.TYPE_OBJ), bfBootPlayer)
	r.Register("connection_name", sig(1, 1, types.TYPE_OBJ), bfConnectionName)
	r.Register("connection_option", sig(2, 2, types.TYPE_OBJ, types.TYPE_STR), bfConnectionOption)
	r.Register("set_connection_option", sig(3, 3, types.TYPE_OBJ, types.TYPE_STR, types.TYPE_ANY), bfSetConnectionOption)
	r.Register("listen", sig(2, 2, types.TYPE_OBJ, types.TYPE_INT), bfListen)
	r.Register("unlisten", sig(1, 1, types.TYPE_INT), bfUnlisten)
	r.Register("listeners", sig(0, 0), bfListeners)
	r.Register("open_network_connection", sig(2, 2, types.TYPE_STR, types.TYPE_INT), bfOpenNetworkConnection)
}

// bfNotify queues a line of output for a player's connection. Only the
// player itself or a wizard may write to a connection.
func bfNotify(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	h, res := r.host()
	if res.IsError() {
		return res
	}
	who := objArg(args[0])
	if who != ctx.Player && !ctx.IsWizard {
		return types.Err(types.E_PERM)
	}
	noFlush := len(args) > 2 && args[2].Truthy()
	if h.Notify(who, args[1].(types.StrValue).Value(), noFlush) {
		return types.Ok(types.NewInt(1))
	}
	return types.Ok(types.NewInt(0))
}

func bfConnectedPlayers(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	h, res := r.host()
	if res.IsError() {
		return res
	}
	ids := h.ConnectedPlayers()
	out := make([]types.Value, len(ids))
	for i, id := range ids {
		out[i] = types.NewObj(id)
	}
	return types.Ok(types.NewList(out))
}

func bfConnectedSeconds(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	h, res := r.host()
	if res.IsError() {
		return res
	}
	secs, ok := h.ConnectedSeconds(objArg(args[0]))
	if !ok {
		return types.Err(types.E_INVARG)
	}
	return types.Ok(types.NewInt(int64(secs)))
}

func bfIdleSeconds(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	h, res := r.host()
	if res.IsError() {
		return res
	}
	secs, ok := h.IdleSeconds(objArg(args[0]))
	if !ok {
		return types.Err(types.E_INVARG)
	}
	return types.Ok(types.NewInt(int64(secs)))
}

func bfBootPlayer(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	h, res := r.host()
	if res.IsError() {
		return res
	}
	who := objArg(args[0])
	if who != ctx.Player && !ctx.IsWizard {
		return types.Err(types.E_PERM)
	}
	h.BootPlayer(who)
	return types.Ok(types.NewInt(0))
}

func bfConnectionName(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	h, res := r.host()
	if res.IsError() {
		return res
	}
	who := objArg(args[0])
	if who != ctx.Player && !ctx.IsWizard {
		return types.Err(types.E_PERM)
	}
	name, ok := h.ConnectionName(who)
	if !ok {
		return types.Err(types.E_INVARG)
	}
	return types.Ok(types.NewStr(name))
}

func bfConnectionOption(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	h, res := r.host()
	if res.IsError() {
		return res
	}
	v, code := h.ConnectionOption(objArg(args[0]), args[1].(types.StrValue).Value())
	if code != types.E_NONE {
		return types.Err(code)
	}
	return types.Ok(v)
}

func bfSetConnectionOption(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	h, res := r.host()
	if res.IsError() {
		return res
	}
	code := h.SetConnectionOption(objArg(args[0]), args[1].(types.StrValue).Value(), args[2])
	if code != types.E_NONE {
		return types.Err(code)
	}
	return types.Ok(types.NewInt(0))
}

func bfListen(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if res := wizardOnly(ctx); res.IsError() {
		return res
	}
	h, res := r.host()
	if res.IsError() {
		return res
	}
	v, code := h.Listen(objArg(args[0]), args[1].(types.IntValue).Val)
	if code != types.E_NONE {
		return types.Err(code)
	}
	return types.Ok(v)
}

func bfUnlisten(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if res := wizardOnly(ctx); res.IsError() {
		return res
	}
	h, res := r.host()
	if res.IsError() {
		return res
	}
	if code := h.Unlisten(args[0].(types.IntValue).Val); code != types.E_NONE {
		return types.Err(code)
	}
	return types.Ok(types.NewInt(0))
}

func bfListeners(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	h, res := r.host()
	if res.IsError() {
		return res
	}
	return types.Ok(types.NewList(h.Listeners()))
}

func bfOpenNetworkConnection(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if res := wizardOnly(ctx); res.IsError() {
		return res
	}
	h, res := r.host()
	if res.IsError() {
		return res
	}
	conn, code := h.OpenNetworkConnection(args[0].(types.StrValue).Value(), args[1].(types.IntValue).Val)
	if code != types.E_NONE {
		return types.Err(code)
	}
	return types.Ok(types.NewObj(conn))
}
