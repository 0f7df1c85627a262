package builtins

import (
	"etamoo/types"
)

func registerTasks(r *Registry) {
	r.Register("task_id", sig(0, 0), bfTaskID)
	r.Register("queued_tasks", sig(0, 0), bfQueuedTasks)
	r.Register("kill_task", sig(1, 1, types.TYPE_INT), bfKillTask)
	r.Register("resume", sig(1, 2, types.TYPE_INT, types.TYPE_ANY), bfResume)
	r.Register("queue_info", sig(0, 1, types.TYPE_OBJ), bfQueueInfo)
	r.Register("suspend", sig(0, 1, types.TYPE_NUM), bfSuspend)
	r.Register("read", sig(0, 2, types.TYPE_OBJ, types.TYPE_ANY), bfRead)
	r.Register("seconds_left", sig(0, 0), bfSecondsLeft)
	r.Register("ticks_left", sig(0, 0), bfTicksLeft)
	r.Register("caller_perms", sig(0, 0), bfCallerPerms)
	r.Register("set_task_perms", sig(1, 1, types.TYPE_OBJ), bfSetTaskPerms)
	r.Register("callers", sig(0, 1, types.TYPE_ANY), bfCallers)
}

func bfTaskID(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if ctx.Task == nil {
		return types.Ok(types.NewInt(0))
	}
	return types.Ok(types.NewInt(ctx.Task.TaskID()))
}

func bfQueuedTasks(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	h, res := r.host()
	if res.IsError() {
		return res
	}
	return types.Ok(types.NewList(h.QueuedTasks(ctx)))
}

func bfKillTask(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	h, res := r.host()
	if res.IsError() {
		return res
	}
	if code := h.KillTask(args[0].(types.IntValue).Val, ctx); code != types.E_NONE {
		return types.Err(code)
	}
	return types.Ok(types.NewInt(0))
}

func bfResume(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	h, res := r.host()
	if res.IsError() {
		return res
	}
	var val types.Value = types.NewInt(0)
	if len(args) > 1 {
		val = args[1]
	}
	if code := h.ResumeTask(args[0].(types.IntValue).Val, val, ctx); code != types.E_NONE {
		return types.Err(code)
	}
	return types.Ok(types.NewInt(0))
}

func bfQueueInfo(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	h, res := r.host()
	if res.IsError() {
		return res
	}
	if len(args) == 0 {
		players := r.Store.Players()
		out := make([]types.Value, 0, len(players))
		for _, p := range players {
			if h.QueueInfo(p) > 0 {
				out = append(out, types.NewObj(p))
			}
		}
		return types.Ok(types.NewList(out))
	}
	return types.Ok(types.NewInt(int64(h.QueueInfo(objArg(args[0])))))
}

// bfSuspend yields the task: with a non-negative argument until that
// many seconds pass, with none until resume().
func bfSuspend(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	seconds := -1.0
	if len(args) > 0 {
		s, _ := types.ToFloat(args[0])
		if s < 0 {
			return types.Err(types.E_INVARG)
		}
		seconds = s
	}
	return types.SuspendFor(seconds)
}

// bfRead parks the task until a line arrives from the player's
// connection (or the named connection, wizard only).
func bfRead(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	conn := ctx.Player
	if len(args) > 0 {
		conn = objArg(args[0])
		if conn != ctx.Player && !ctx.IsWizard {
			return types.Err(types.E_PERM)
		}
	}
	return types.ReadLine(conn)
}

func bfSecondsLeft(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if ctx.Task == nil {
		return types.Ok(types.NewInt(0))
	}
	return types.Ok(types.NewInt(int64(ctx.Task.SecondsLeft())))
}

func bfTicksLeft(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if ctx.Task == nil {
		return types.Ok(types.NewInt(0))
	}
	return types.Ok(types.NewInt(ctx.Task.TicksLeft()))
}

func bfCallerPerms(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if ctx.Task == nil {
		return types.Ok(types.NewObj(types.ObjNothing))
	}
	return types.Ok(types.NewObj(ctx.Task.CallerPerms()))
}

// bfSetTaskPerms changes the running verb's effective permissions;
// only a wizard may set them to anyone but itself.
func bfSetTaskPerms(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	who := objArg(args[0])
	if who != ctx.Programmer && !ctx.IsWizard {
		return types.Err(types.E_PERM)
	}
	if ctx.Task == nil {
		return types.Err(types.E_INVARG)
	}
	ctx.Task.SetPerms(who)
	return types.Ok(types.NewInt(0))
}

func bfCallers(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if ctx.Task == nil {
		return types.Ok(types.NewEmptyList())
	}
	return types.Ok(ctx.Task.Callers())
}
