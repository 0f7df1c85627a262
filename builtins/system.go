package builtins

import (
	"os"
	"runtime"
	"time"

	"etamoo/types"
)

func registerSystem(r *Registry) {
	r.Register("time", sig(0, 0), bfTime)
	r.Register("ctime", sig(0, 1, types.TYPE_INT), bfCtime)
	r.Register("dump_database", sig(0, 0), bfDumpDatabase)
	r.Register("shutdown", sig(0, 1, types.TYPE_STR), bfShutdown)
	r.Register("load_server_options", sig(0, 0), bfLoadServerOptions)
	r.Register("server_log", sig(1, 2, types.TYPE_STR, types.TYPE_ANY), bfServerLog)
	r.Register("renumber", sig(1, 1, types.TYPE_OBJ), bfRenumber)
	r.Register("reset_max_object", sig(0, 0), bfResetMaxObject)
	r.Register("server_version", sig(0, 0), bfServerVersion)
	r.Register("memory_usage", sig(0, 0), bfMemoryUsage)
	r.Register("db_disk_size", sig(0, 0), bfDbDiskSize)
	r.Register("verb_cache_stats", sig(0, 0), bfVerbCacheStats)
	r.Register("log_cache_stats", sig(0, 0), bfLogCacheStats)
}

func bfTime(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	return types.Ok(types.NewInt(time.Now().Unix()))
}

// bfCtime formats a time the way ctime(3) does, in the server's local
// zone (TZ).
func bfCtime(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	t := time.Now()
	if len(args) > 0 {
		t = time.Unix(args[0].(types.IntValue).Val, 0)
	}
	return types.Ok(types.NewStr(t.Local().Format("Mon Jan _2 15:04:05 2006 MST")))
}

func bfDumpDatabase(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if res := wizardOnly(ctx); res.IsError() {
		return res
	}
	h, res := r.host()
	if res.IsError() {
		return res
	}
	if err := h.Checkpoint(); err != nil {
		return types.Err(types.E_QUOTA)
	}
	return types.Ok(types.NewInt(0))
}

func bfShutdown(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if res := wizardOnly(ctx); res.IsError() {
		return res
	}
	h, res := r.host()
	if res.IsError() {
		return res
	}
	msg := ""
	if len(args) > 0 {
		msg = args[0].(types.StrValue).Value()
	}
	h.Shutdown(msg)
	return types.Ok(types.NewInt(0))
}

func bfLoadServerOptions(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if res := wizardOnly(ctx); res.IsError() {
		return res
	}
	r.Store.LoadServerOptions()
	return types.Ok(types.NewInt(0))
}

func bfServerLog(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if res := wizardOnly(ctx); res.IsError() {
		return res
	}
	h, res := r.host()
	if res.IsError() {
		return res
	}
	h.ServerLog(args[0].(types.StrValue).Value())
	return types.Ok(types.NewInt(0))
}

func bfRenumber(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if res := wizardOnly(ctx); res.IsError() {
		return res
	}
	newID, err := r.Store.Renumber(objArg(args[0]))
	if err != nil {
		return types.Err(types.E_INVARG)
	}
	return types.Ok(types.NewObj(newID))
}

func bfResetMaxObject(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if res := wizardOnly(ctx); res.IsError() {
		return res
	}
	r.Store.ResetMaxObject()
	return types.Ok(types.NewInt(0))
}

func bfServerVersion(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if r.Host != nil {
		return types.Ok(types.NewStr(r.Host.ServerVersion()))
	}
	return types.Ok(types.NewStr("etamoo (embedded)"))
}

// bfMemoryUsage reports {block-size, nused, nfree} triples the way the
// classic allocator did; the runtime gives one coarse triple.
func bfMemoryUsage(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	entry := types.NewList([]types.Value{
		types.NewInt(int64(os.Getpagesize())),
		types.NewInt(int64(m.HeapInuse) / int64(os.Getpagesize())),
		types.NewInt(int64(m.HeapIdle) / int64(os.Getpagesize())),
	})
	return types.Ok(types.NewList([]types.Value{entry}))
}

func bfDbDiskSize(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	h, res := r.host()
	if res.IsError() {
		return res
	}
	size, ok := h.DBDiskSize()
	if !ok {
		return types.Err(types.E_QUOTA)
	}
	return types.Ok(types.NewInt(size))
}

func bfVerbCacheStats(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if res := wizardOnly(ctx); res.IsError() {
		return res
	}
	if r.Host != nil {
		return types.Ok(r.Host.CacheStats("verb"))
	}
	return types.Ok(types.NewEmptyList())
}

func bfLogCacheStats(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if res := wizardOnly(ctx); res.IsError() {
		return res
	}
	if r.Host != nil {
		return types.Ok(r.Host.CacheStats("log"))
	}
	return types.Ok(types.NewEmptyList())
}
