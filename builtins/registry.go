package builtins

import (
	"strings"

	"etamoo/db"
	"etamoo/types"
)

// Fn is the implementation of one builtin function.
type Fn func(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result

// Sig is the declarative signature checked before a builtin runs:
// argument count bounds and per-position type codes. Max of -1 means
// unbounded; positions past the end of Types repeat the last entry.
type Sig struct {
	Min   int
	Max   int
	Types []types.TypeCode
}

type entry struct {
	name string
	sig  Sig
	fn   Fn
}

// Host is the slice of the scheduler and connection machinery the
// task, network, and admin builtins reach. The server package
// implements it; tests stub it.
type Host interface {
	// Tasks
	QueuedTasks(ctx *types.TaskContext) []types.Value
	KillTask(id int64, ctx *types.TaskContext) types.ErrorCode
	ResumeTask(id int64, val types.Value, ctx *types.TaskContext) types.ErrorCode
	QueueInfo(player types.ObjID) int

	// Connections
	Notify(player types.ObjID, line string, noFlush bool) bool
	ConnectedPlayers() []types.ObjID
	ConnectedSeconds(player types.ObjID) (float64, bool)
	IdleSeconds(player types.ObjID) (float64, bool)
	BootPlayer(player types.ObjID)
	ConnectionName(player types.ObjID) (string, bool)
	ConnectionOption(player types.ObjID, name string) (types.Value, types.ErrorCode)
	SetConnectionOption(player types.ObjID, name string, value types.Value) types.ErrorCode
	Listen(obj types.ObjID, point int64) (types.Value, types.ErrorCode)
	Unlisten(point int64) types.ErrorCode
	Listeners() []types.Value
	OpenNetworkConnection(host string, port int64) (types.ObjID, types.ErrorCode)

	// Admin
	Checkpoint() error
	Shutdown(message string)
	ServerLog(message string)
	ServerVersion() string
	DBDiskSize() (int64, bool)
	CacheStats(which string) types.Value
}

// VerbCallerFunc runs a verb synchronously on behalf of a builtin
// (move/create/recycle hooks). The server wires one in; without it the
// hooks are skipped.
type VerbCallerFunc func(obj types.ObjID, verb string, args []types.Value, ctx *types.TaskContext) types.Result

// Registry holds the builtin function table plus the store and host
// the implementations work against.
type Registry struct {
	Store      *db.Store
	Host       Host
	VerbCaller VerbCallerFunc

	funcs map[string]entry
}

// CallVerb invokes the wired synchronous verb caller. Verb-not-found
// and caller-not-wired both come back as E_VERBNF so hook sites can
// treat them alike.
func (r *Registry) CallVerb(obj types.ObjID, verb string, args []types.Value, ctx *types.TaskContext) types.Result {
	if r.VerbCaller == nil {
		return types.Err(types.E_VERBNF)
	}
	return r.VerbCaller(obj, verb, args, ctx)
}

// NewRegistry builds the full builtin table over a store.
func NewRegistry(store *db.Store) *Registry {
	r := &Registry{
		Store: store,
		funcs: make(map[string]entry),
	}
	registerGeneral(r)
	registerMath(r)
	registerStrings(r)
	registerRegex(r)
	registerCrypto(r)
	registerLists(r)
	registerObjects(r)
	registerProperties(r)
	registerVerbs(r)
	registerTasks(r)
	registerNetwork(r)
	registerSystem(r)
	return r
}

// Register adds one builtin. Names are case-folded.
func (r *Registry) Register(name string, sig Sig, fn Fn) {
	key := strings.ToLower(name)
	r.funcs[key] = entry{name: key, sig: sig, fn: fn}
}

// Exists reports whether a builtin is registered; implements
// vm.BuiltinCaller.
func (r *Registry) Exists(name string) bool {
	_, ok := r.funcs[strings.ToLower(name)]
	return ok
}

// Names lists all registered builtins, unsorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.funcs))
	for k := range r.funcs {
		out = append(out, k)
	}
	return out
}

// Call validates the arguments against the signature and invokes the
// builtin; implements vm.BuiltinCaller.
func (r *Registry) Call(name string, ctx *types.TaskContext, args []types.Value) types.Result {
	e, ok := r.funcs[strings.ToLower(name)]
	if !ok {
		return types.ErrMsg(types.E_VERBNF, "Unknown built-in function: "+name)
	}
	if len(args) < e.sig.Min || (e.sig.Max >= 0 && len(args) > e.sig.Max) {
		return types.Err(types.E_ARGS)
	}
	for i, a := range args {
		want := e.sig.typeAt(i)
		if !want.Accepts(a.Type()) {
			return types.Err(types.E_TYPE)
		}
	}
	return e.fn(r, ctx, args)
}

func (s Sig) typeAt(i int) types.TypeCode {
	if len(s.Types) == 0 {
		return types.TYPE_ANY
	}
	if i >= len(s.Types) {
		return s.Types[len(s.Types)-1]
	}
	return s.Types[i]
}

// Convenience signature constructors keep the registration tables
// readable.

func sig(min, max int, t ...types.TypeCode) Sig {
	return Sig{Min: min, Max: max, Types: t}
}

// wizardOnly guards the administrative surface.
func wizardOnly(ctx *types.TaskContext) types.Result {
	if !ctx.IsWizard {
		return types.Err(types.E_PERM)
	}
	return types.Result{}
}

// host returns the registry's host or an E_INVARG failure when the
// builtin runs detached from a server (unit tests, bare eval).
func (r *Registry) host() (Host, types.Result) {
	if r.Host == nil {
		return nil, types.Err(types.E_INVARG)
	}
	return r.Host, types.Result{}
}
