package server

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"etamoo/builtins"
	"etamoo/db"
	"etamoo/task"
	"etamoo/types"
	"etamoo/vm"
)

// Scheduler owns the task table and runs MOO code strictly one task at
// a time: the cooperative, single-threaded contract of the language.
// Host threads (listeners, the checkpointer) only enqueue work.
type Scheduler struct {
	store *db.Store
	reg   *builtins.Registry
	log   *Logger
	conns *ConnectionManager

	mu      sync.Mutex
	tasks   map[int64]*task.Task
	queue   taskHeap
	readers map[types.ObjID]*task.Task // connection -> task blocked in read()
	nextID  int64
	seq     int64

	wakeCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(store *db.Store, reg *builtins.Registry, log *Logger, conns *ConnectionManager) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:   store,
		reg:     reg,
		log:     log,
		conns:   conns,
		tasks:   make(map[int64]*task.Task),
		readers: make(map[types.ObjID]*task.Task),
		wakeCh:  make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the scheduler loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop halts the loop and waits for the running task to yield.
func (s *Scheduler) Stop() {
	s.cancel()
	s.kick()
	s.wg.Wait()
}

func (s *Scheduler) kick() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	for {
		t, sleep := s.nextReady()
		if t != nil {
			s.runTask(t)
			continue
		}
		if sleep <= 0 || sleep > time.Second {
			sleep = time.Second
		}
		select {
		case <-s.ctx.Done():
			return
		case <-s.wakeCh:
		case <-time.After(sleep):
		}
	}
}

// nextReady pops the earliest due task, or reports how long until the
// next wake.
func (s *Scheduler) nextReady() (*task.Task, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for s.queue.Len() > 0 {
		t := s.queue[0]
		if t.State() == task.StateDone {
			heap.Pop(&s.queue)
			continue
		}
		if t.WakeTime.After(now) {
			return nil, time.Until(t.WakeTime)
		}
		heap.Pop(&s.queue)
		return t, 0
	}
	return nil, 0
}

// runTask executes one slice of a task: from its wake point to
// completion or its next suspension.
func (s *Scheduler) runTask(t *task.Task) {
	if t.Killed() {
		s.finish(t)
		return
	}
	t.SetState(task.StateRunning)
	m := t.Machine

	// Fresh budgets for this slice: foreground until the first
	// suspension, background after.
	opts := db.Options()
	m.TicksUsed = 0
	if t.Background {
		m.TickLimit = opts.BgTicks
		m.Deadline = time.Now().Add(time.Duration(opts.BgSeconds * float64(time.Second)))
	} else {
		m.TickLimit = opts.FgTicks
		m.Deadline = time.Now().Add(time.Duration(opts.FgSeconds * float64(time.Second)))
	}
	m.MaxDepth = opts.MaxStackDepth
	m.Killed = t.KilledFlag()

	if t.WakeValue != nil {
		m.Resume(t.WakeValue)
		t.WakeValue = nil
	}

	out := m.Run()
	switch out.Kind {
	case vm.OutDone:
		s.finish(t)

	case vm.OutSuspend:
		t.Background = true
		t.SetState(task.StateSuspended)
		s.mu.Lock()
		if out.Seconds < 0 {
			t.Indefinite = true
			t.WakeTime = time.Time{}
		} else {
			t.Indefinite = false
			t.WakeTime = time.Now().Add(time.Duration(out.Seconds * float64(time.Second)))
			s.pushLocked(t)
		}
		s.mu.Unlock()
		// The wake value defaults to 0 unless resume() supplies one.
		t.WakeValue = types.NewInt(0)

	case vm.OutRead:
		t.Background = true
		t.SetState(task.StateReading)
		t.ReadConn = out.Conn
		s.mu.Lock()
		s.readers[out.Conn] = t
		s.mu.Unlock()

	case vm.OutKilled:
		s.finish(t)

	case vm.OutTicksExhausted, vm.OutSecondsExhausted, vm.OutUncaught:
		s.report(t, out)
		s.finish(t)
	}
	s.conns.Flush(t.Owner)
}

// report delivers a traceback to the task's owner and, for
// wizard-owned tasks, to the server log.
func (s *Scheduler) report(t *task.Task, out *vm.Outcome) {
	lines := task.TracebackLines(out)
	for _, line := range lines {
		s.conns.Send(t.Owner, line, false)
	}
	if s.store.IsWizard(t.Owner) {
		for _, line := range lines {
			s.log.Printf("TRACEBACK (task %d): %s", t.ID, line)
		}
	}
}

func (s *Scheduler) finish(t *task.Task) {
	t.SetState(task.StateDone)
	s.mu.Lock()
	delete(s.tasks, t.ID)
	if t.ReadConn != types.ObjNothing && s.readers[t.ReadConn] == t {
		delete(s.readers, t.ReadConn)
	}
	s.mu.Unlock()
}

func (s *Scheduler) allocID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID
}

// pushLocked queues a task; the caller holds the lock.
func (s *Scheduler) pushLocked(t *task.Task) {
	s.seq++
	t.Seq = s.seq
	heap.Push(&s.queue, t)
}

// Enqueue registers a runnable task due at the given time.
func (s *Scheduler) Enqueue(t *task.Task, due time.Time) {
	s.mu.Lock()
	t.WakeTime = due
	s.tasks[t.ID] = t
	s.pushLocked(t)
	s.mu.Unlock()
	s.kick()
}

// NewCommandTask wraps a machine as a foreground task and queues it.
func (s *Scheduler) NewCommandTask(owner types.ObjID, m *vm.VM) int64 {
	id := s.allocID()
	t := task.NewTask(id, owner, m)
	s.Enqueue(t, time.Now())
	return id
}

// Fork implements vm.Hooks: schedule the captured fork body as a new
// background task after its delay.
func (s *Scheduler) Fork(spec *vm.ForkSpec) int64 {
	id := s.allocID()
	m := vm.NewForked(s.store, s.reg, spec, id)
	m.Hooks = s
	t := task.NewTask(id, spec.Player, m)
	t.Kind = task.KindForked
	t.Background = true
	s.Enqueue(t, time.Now().Add(time.Duration(spec.Delay*float64(time.Second))))
	return id
}

// DeliverLine hands an input line to the task blocked reading on the
// connection, if any. Reports whether a reader consumed the line.
func (s *Scheduler) DeliverLine(conn types.ObjID, line string) bool {
	s.mu.Lock()
	t, ok := s.readers[conn]
	if ok {
		delete(s.readers, conn)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	t.ReadConn = types.ObjNothing
	t.WakeValue = types.NewStr(line)
	t.SetState(task.StateRunnable)
	s.Enqueue(t, time.Now())
	return true
}

// Tasks helpers for the builtin surface.

// Queued lists the tasks visible to queued_tasks(): everything alive
// that is not the running slice; non-wizards see their own tasks only.
func (s *Scheduler) Queued(ctx *types.TaskContext) []types.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Value
	for _, t := range s.tasks {
		if t.State() == task.StateRunning || t.State() == task.StateDone {
			continue
		}
		if !ctx.IsWizard && t.Owner != ctx.Programmer {
			continue
		}
		out = append(out, t.QueuedInfo())
	}
	return out
}

// Kill marks a task for collection.
func (s *Scheduler) Kill(id int64, ctx *types.TaskContext) types.ErrorCode {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return types.E_INVARG
	}
	if !ctx.IsWizard && t.Owner != ctx.Programmer {
		return types.E_PERM
	}
	t.Kill()
	if t.State() != task.StateRunning {
		s.finish(t)
	}
	s.kick()
	return types.E_NONE
}

// Resume wakes a suspended task early with a value.
func (s *Scheduler) Resume(id int64, val types.Value, ctx *types.TaskContext) types.ErrorCode {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return types.E_INVARG
	}
	if !ctx.IsWizard && t.Owner != ctx.Programmer {
		return types.E_PERM
	}
	if t.State() != task.StateSuspended {
		return types.E_INVARG
	}
	t.WakeValue = val
	t.Indefinite = false
	t.SetState(task.StateRunnable)
	s.Enqueue(t, time.Now())
	return types.E_NONE
}

// CountFor reports how many queued tasks a player owns.
func (s *Scheduler) CountFor(player types.ObjID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if t.Owner == player && t.State() != task.StateRunning && t.State() != task.StateDone {
			n++
		}
	}
	return n
}

// taskHeap orders tasks by wake time, FIFO on ties via the enqueue
// sequence number.
type taskHeap []*task.Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].WakeTime.Equal(h[j].WakeTime) {
		return h[i].Seq < h[j].Seq
	}
	return h[i].WakeTime.Before(h[j].WakeTime)
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x interface{}) {
	*h = append(*h, x.(*task.Task))
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
