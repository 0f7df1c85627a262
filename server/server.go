package server

import (
	"fmt"
	"os"
	"strings"
	"time"

	"etamoo/builtins"
	"etamoo/db"
	"etamoo/parser"
	"etamoo/task"
	"etamoo/types"
	"etamoo/vm"
)

// Version is the string server_version() reports.
const Version = "etamoo 0.3.0"

// ListenFunc opens a real transport listen point; cmd/etamoo supplies
// one backed by TCP. It returns a closer used by unlisten().
type ListenFunc func(port int64) (func() error, error)

type listenPoint struct {
	obj   types.ObjID
	port  int64
	close func() error
}

// Server wires the store, registry, scheduler, and connection table
// together and implements the host surface the builtins call.
type Server struct {
	Store *db.Store
	Reg   *builtins.Registry
	Sched *Scheduler
	Conns *ConnectionManager
	Log   *Logger

	DBPath   string
	Dumper   db.Dumper
	ListenFn ListenFunc

	listens  map[int64]*listenPoint
	shutdown chan string
	oobPrefix string
}

// NewServer assembles a server around a loaded store.
func NewServer(store *db.Store, log *Logger) *Server {
	s := &Server{
		Store:     store,
		Log:       log,
		Conns:     NewConnectionManager(),
		listens:   make(map[int64]*listenPoint),
		shutdown:  make(chan string, 1),
		oobPrefix: "#$#",
	}
	s.Reg = builtins.NewRegistry(store)
	s.Reg.Host = s
	s.Reg.VerbCaller = s.callVerbSync
	s.Sched = NewScheduler(store, s.Reg, log, s.Conns)
	builtins.SeedRandom(time.Now().UnixNano())
	store.LoadServerOptions()
	return s
}

// Start runs the scheduler.
func (s *Server) Start() {
	s.Sched.Start()
}

// Stop halts the scheduler and closes listen points.
func (s *Server) Stop() {
	s.Sched.Stop()
	for _, lp := range s.listens {
		if lp.close != nil {
			lp.close()
		}
	}
}

// ShutdownRequested yields the shutdown message once shutdown() runs.
func (s *Server) ShutdownRequested() <-chan string {
	return s.shutdown
}

// newMachine builds a machine wired to this server.
func (s *Server) newMachine(player types.ObjID) *vm.VM {
	m := vm.New(s.Store, s.Reg)
	m.Hooks = s.Sched
	m.Player = player
	return m
}

// HandleLine is the entry point for one input line from a connection:
// a read()ing task gets it first, then out-of-band delivery, then
// login or command dispatch.
func (s *Server) HandleLine(connID types.ObjID, line string) {
	s.Conns.Touch(connID)

	if s.Sched.DeliverLine(connID, line) {
		return
	}

	if s.handleProgram(connID, line) {
		return
	}

	if strings.HasPrefix(line, s.oobPrefix) {
		s.callServerVerb(connID, "do_out_of_band_command", []types.Value{
			types.NewStr(line),
		})
		return
	}

	if connID < 0 {
		s.handleLogin(connID, line)
		return
	}

	// The ;-prefix evaluates an expression for programmers; everyone
	// else falls through to command dispatch.
	if strings.HasPrefix(line, ";") {
		if obj := s.Store.Get(connID); obj != nil && obj.IsProgrammer() {
			s.evalCommand(connID, strings.TrimPrefix(line, ";"))
			return
		}
	}
	s.DispatchCommand(connID, line)
}

// evalCommand runs ;-eval input and reports the value or traceback.
func (s *Server) evalCommand(player types.ObjID, source string) {
	source = strings.TrimSpace(source)
	if source == "" {
		return
	}
	if !strings.HasSuffix(source, ";") {
		source += ";"
	}
	out := s.EvalString(player, source)
	switch out.Kind {
	case vm.OutDone:
		s.Conns.Send(player, "=> "+types.ToLiteral(out.Value), false)
	case vm.OutUncaught, vm.OutTicksExhausted, vm.OutSecondsExhausted:
		if len(out.Traceback) == 0 {
			s.Conns.Send(player, out.Err.Message(), false)
			return
		}
		for _, line := range out.Traceback {
			s.Conns.Send(player, line, false)
		}
	case vm.OutSuspend, vm.OutRead:
		s.Conns.Send(player, "=> 0 (suspended eval abandoned)", false)
	}
}

// handleProgram recognizes the in-band `.program obj:verb ... .`
// sequence ahead of command dispatch. Reports whether it consumed the
// line.
func (s *Server) handleProgram(connID types.ObjID, line string) bool {
	info := s.Conns.Get(connID)
	if info == nil {
		return false
	}

	if !info.Programming {
		rest, ok := strings.CutPrefix(line, ".program ")
		if !ok {
			return false
		}
		if connID < 0 || !s.Store.Get(connID).IsProgrammer() {
			s.Conns.Send(connID, "You are not a programmer.", false)
			return true
		}
		info.Programming = true
		info.ProgramTarget = strings.TrimSpace(rest)
		info.ProgramLines = nil
		return true
	}

	switch strings.TrimSpace(line) {
	case ".":
		target := info.ProgramTarget
		lines := info.ProgramLines
		info.Programming = false
		info.ProgramTarget = ""
		info.ProgramLines = nil
		s.finishProgram(connID, target, lines)
	case "@abort":
		info.Programming = false
		info.ProgramTarget = ""
		info.ProgramLines = nil
		s.Conns.Send(connID, "Programming aborted.", false)
	default:
		info.ProgramLines = append(info.ProgramLines, line)
	}
	return true
}

// finishProgram installs collected source on the obj:verb target.
func (s *Server) finishProgram(player types.ObjID, target string, lines []string) {
	colon := strings.IndexByte(target, ':')
	if colon <= 0 {
		s.Conns.Send(player, "Usage: .program object:verb", false)
		return
	}
	objRef := target[:colon]
	verbName := target[colon+1:]

	playerObj := s.Store.Get(player)
	location := types.ObjNothing
	if playerObj != nil {
		location = playerObj.Location
	}
	var obj types.ObjID
	if strings.HasPrefix(objRef, "$") {
		v, code := s.Store.GetProperty(0, objRef[1:])
		ov, ok := v.(types.ObjValue)
		if code != types.E_NONE || !ok {
			s.Conns.Send(player, "I don't know which object you mean.", false)
			return
		}
		obj = ov.Val
	} else {
		obj = MatchObject(s.Store, player, location, objRef)
	}
	if !s.Store.Valid(obj) {
		s.Conns.Send(player, "I don't know which object you mean.", false)
		return
	}

	verb, _, code := s.Store.GetVerb(obj, types.NewStr(verbName))
	if code != types.E_NONE {
		s.Conns.Send(player, "That object has no such verb.", false)
		return
	}
	if diags := db.ProgramVerb(verb, lines); diags != nil {
		for _, d := range diags {
			s.Conns.Send(player, d, false)
		}
		return
	}
	s.Conns.Send(player, "0 errors.", false)
	s.Conns.Send(player, "Verb programmed.", false)
}

// handleLogin feeds an un-logged-in line to #0:do_login_command; a
// player object result completes the login.
func (s *Server) handleLogin(connID types.ObjID, line string) {
	cmd := ParseCommand(line)
	argvals := make([]types.Value, len(cmd.Args))
	for i, w := range cmd.Args {
		argvals[i] = types.NewStr(w)
	}
	ctx := types.NewTaskContext()
	ctx.Player = connID
	ctx.Programmer = types.ObjNothing
	ctx.IsWizard = true // server hooks run with full permissions
	res := s.callVerbSync(0, "do_login_command",
		append([]types.Value{types.NewStr(cmd.Verb)}, argvals...), ctx)
	if res.Flow != types.FlowNormal {
		return
	}
	player, ok := res.Val.(types.ObjValue)
	if !ok || !s.Store.Valid(player.Val) {
		return
	}
	s.Conns.Login(connID, player.Val)
	s.callServerVerb(player.Val, "user_connected", []types.Value{types.NewObj(player.Val)})
}

// DispatchCommand parses one typed command and schedules the matching
// verb as a foreground task.
func (s *Server) DispatchCommand(player types.ObjID, line string) {
	cmd := ParseCommand(line)
	if cmd.Verb == "" {
		return
	}

	playerObj := s.Store.Get(player)
	if playerObj == nil {
		return
	}
	location := playerObj.Location

	cmd.Dobj = MatchObject(s.Store, player, location, cmd.Dobjstr)
	cmd.Iobj = MatchObject(s.Store, player, location, cmd.Iobjstr)

	// Search order: player, the room, the direct object, the indirect
	// object.
	searchPath := []types.ObjID{player, location, cmd.Dobj, cmd.Iobj}
	for _, where := range searchPath {
		if where < 0 || !s.Store.Valid(where) {
			continue
		}
		verb, loc, found := s.Store.FindCommandVerb(where, cmd.Verb, cmd.Dobj, cmd.Prep, cmd.Iobj)
		if !found {
			continue
		}
		s.startCommandTask(player, where, verb, loc, cmd)
		return
	}

	// No verb matched: the room's huh verb gets a chance before the
	// stock complaint.
	if location >= 0 {
		if verb, loc, found := s.Store.FindCommandVerb(location, "huh", types.ObjNothing, db.PrepNone, types.ObjNothing); found {
			s.startCommandTask(player, location, verb, loc, cmd)
			return
		}
	}
	s.Conns.Send(player, "I couldn't understand that.", false)
}

func (s *Server) startCommandTask(player, this types.ObjID, verb *db.Verb, loc types.ObjID, cmd *ParsedCommand) {
	prog, err := vm.CompiledProgram(verb)
	if err != nil {
		s.Conns.Send(player, "I couldn't understand that.", false)
		return
	}
	m := s.newMachine(player)
	m.Cmd = vm.CommandVars{
		Argstr:  cmd.Argstr,
		Dobjstr: cmd.Dobjstr,
		Prepstr: cmd.Prepstr,
		Iobjstr: cmd.Iobjstr,
		Dobj:    cmd.Dobj,
		Iobj:    cmd.Iobj,
	}
	argvals := make([]types.Value, len(cmd.Args))
	for i, w := range cmd.Args {
		argvals[i] = types.NewStr(w)
	}
	m.PushFrame(prog, this, player, verb.Owner, cmd.Verb, loc,
		verb.Perms.Has(db.VerbDebug), types.NewList(argvals))
	s.Sched.NewCommandTask(player, m)
}

// callServerVerb schedules a server-initiated verb call as a task,
// quietly doing nothing when the verb is missing.
func (s *Server) callServerVerb(player types.ObjID, verbName string, args []types.Value) {
	verb, loc, code := s.Store.FindVerb(0, verbName)
	if code != types.E_NONE {
		return
	}
	prog, err := vm.CompiledProgram(verb)
	if err != nil {
		return
	}
	m := s.newMachine(player)
	m.PushFrame(prog, 0, player, verb.Owner, verbName, loc,
		verb.Perms.Has(db.VerbDebug), types.NewList(args))
	t := task.NewTask(s.Sched.allocID(), player, m)
	t.Kind = task.KindServer
	s.Sched.Enqueue(t, time.Now())
}

// callVerbSync runs a verb to completion inline; the move/create/
// recycle hooks and login flow use it. Suspension inside these hooks
// is not allowed.
func (s *Server) callVerbSync(obj types.ObjID, verbName string, args []types.Value, ctx *types.TaskContext) types.Result {
	verb, loc, code := s.Store.FindVerb(obj, verbName)
	if code != types.E_NONE {
		return types.Err(code)
	}
	prog, err := vm.CompiledProgram(verb)
	if err != nil {
		return types.Err(types.E_VERBNF)
	}
	m := s.newMachine(ctx.Player)
	m.PushFrame(prog, obj, ctx.ThisObj, verb.Owner, verbName, loc,
		verb.Perms.Has(db.VerbDebug), types.NewList(args))
	opts := db.Options()
	m.TickLimit = opts.FgTicks
	m.Deadline = time.Now().Add(time.Duration(opts.FgSeconds * float64(time.Second)))

	out := m.Run()
	switch out.Kind {
	case vm.OutDone:
		return types.Ok(out.Value)
	case vm.OutUncaught:
		return out.Err
	case vm.OutSuspend, vm.OutRead:
		return types.ErrMsg(types.E_INVARG, "Suspension not allowed here")
	default:
		return types.Err(types.E_QUOTA)
	}
}

// EvalString parses and runs source as one synchronous foreground
// task, returning its terminal outcome. The REPL's ;-command and the
// conformance suite use it.
func (s *Server) EvalString(player types.ObjID, source string) *vm.Outcome {
	p := parser.NewParser(source)
	stmts, err := p.ParseProgram()
	if err != nil {
		return &vm.Outcome{
			Kind: vm.OutUncaught,
			Err:  types.ErrMsg(types.E_INVARG, err.Error()),
		}
	}
	// A trailing bare expression statement evaluates to its value.
	prog, err := vm.CompileReturningLast(stmts)
	if err != nil {
		return &vm.Outcome{
			Kind: vm.OutUncaught,
			Err:  types.ErrMsg(types.E_INVARG, err.Error()),
		}
	}
	m := s.newMachine(player)
	m.TaskID = s.Sched.allocID()
	owner := player
	debug := true
	m.PushFrame(prog, types.ObjNothing, player, owner, "eval", types.ObjNothing, debug, nil)
	opts := db.Options()
	m.TickLimit = opts.FgTicks
	m.Deadline = time.Now().Add(time.Duration(opts.FgSeconds * float64(time.Second)))
	return m.Run()
}

// Host implementation

func (s *Server) QueuedTasks(ctx *types.TaskContext) []types.Value {
	return s.Sched.Queued(ctx)
}

func (s *Server) KillTask(id int64, ctx *types.TaskContext) types.ErrorCode {
	return s.Sched.Kill(id, ctx)
}

func (s *Server) ResumeTask(id int64, val types.Value, ctx *types.TaskContext) types.ErrorCode {
	return s.Sched.Resume(id, val, ctx)
}

func (s *Server) QueueInfo(player types.ObjID) int {
	return s.Sched.CountFor(player)
}

func (s *Server) Notify(player types.ObjID, line string, noFlush bool) bool {
	return s.Conns.Send(player, line, noFlush)
}

func (s *Server) ConnectedPlayers() []types.ObjID {
	return s.Conns.Players()
}

func (s *Server) ConnectedSeconds(player types.ObjID) (float64, bool) {
	info := s.Conns.Get(player)
	if info == nil {
		return 0, false
	}
	return time.Since(info.ConnectedAt).Seconds(), true
}

func (s *Server) IdleSeconds(player types.ObjID) (float64, bool) {
	info := s.Conns.Get(player)
	if info == nil {
		return 0, false
	}
	return time.Since(info.LastInput).Seconds(), true
}

func (s *Server) BootPlayer(player types.ObjID) {
	info := s.Conns.Get(player)
	if info == nil {
		return
	}
	info.Conn.Close()
	s.Conns.Remove(player)
	s.callServerVerb(player, "user_disconnected", []types.Value{types.NewObj(player)})
}

func (s *Server) ConnectionName(player types.ObjID) (string, bool) {
	info := s.Conns.Get(player)
	if info == nil {
		return "", false
	}
	return info.Name, true
}

func (s *Server) ConnectionOption(player types.ObjID, name string) (types.Value, types.ErrorCode) {
	v, ok := s.Conns.Option(player, name)
	if !ok {
		return nil, types.E_INVARG
	}
	return v, types.E_NONE
}

func (s *Server) SetConnectionOption(player types.ObjID, name string, value types.Value) types.ErrorCode {
	if !s.Conns.SetOption(player, name, value) {
		return types.E_INVARG
	}
	return types.E_NONE
}

func (s *Server) Listen(obj types.ObjID, point int64) (types.Value, types.ErrorCode) {
	if !s.Store.Valid(obj) {
		return nil, types.E_INVARG
	}
	if _, exists := s.listens[point]; exists {
		return nil, types.E_INVARG
	}
	lp := &listenPoint{obj: obj, port: point}
	if s.ListenFn != nil {
		closer, err := s.ListenFn(point)
		if err != nil {
			return nil, types.E_QUOTA
		}
		lp.close = closer
	}
	s.listens[point] = lp
	return types.NewInt(point), types.E_NONE
}

func (s *Server) Unlisten(point int64) types.ErrorCode {
	lp, ok := s.listens[point]
	if !ok {
		return types.E_INVARG
	}
	if lp.close != nil {
		lp.close()
	}
	delete(s.listens, point)
	return types.E_NONE
}

func (s *Server) Listeners() []types.Value {
	var out []types.Value
	for _, lp := range s.listens {
		out = append(out, types.NewList([]types.Value{
			types.NewObj(lp.obj),
			types.NewInt(lp.port),
			types.NewInt(1),
		}))
	}
	return out
}

func (s *Server) OpenNetworkConnection(host string, port int64) (types.ObjID, types.ErrorCode) {
	// Outbound connections belong to the transport collaborator; the
	// core refuses when none is wired.
	return types.ObjNothing, types.E_PERM
}

func (s *Server) Checkpoint() error {
	if s.Dumper == nil || s.DBPath == "" {
		return fmt.Errorf("no dump target configured")
	}
	s.Log.Printf("CHECKPOINTING on %s", s.DBPath)
	return db.Checkpoint(s.Store, s.Dumper, s.DBPath)
}

func (s *Server) Shutdown(message string) {
	s.Log.Printf("SHUTDOWN: %s", message)
	select {
	case s.shutdown <- message:
	default:
	}
}

func (s *Server) ServerLog(message string) {
	s.Log.Printf("> %s", message)
}

func (s *Server) ServerVersion() string {
	return Version
}

func (s *Server) DBDiskSize() (int64, bool) {
	if s.DBPath == "" {
		return 0, false
	}
	st, err := os.Stat(s.DBPath)
	if err != nil {
		return 0, false
	}
	return st.Size(), true
}

func (s *Server) CacheStats(which string) types.Value {
	switch which {
	case "verb":
		hits, misses, entries := builtins.RegexCacheStats()
		_ = entries
		// The verb cache is per-verb compiled programs; report the
		// regex collaborator's counters alongside a generation stamp.
		return types.NewList([]types.Value{
			types.NewInt(hits),
			types.NewInt(misses),
			types.NewInt(0),
			types.NewInt(0),
			types.NewEmptyList(),
		})
	default:
		return types.NewEmptyList()
	}
}
