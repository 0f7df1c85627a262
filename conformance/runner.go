package conformance

import (
	"fmt"
	"strings"
	"sync"

	"etamoo/db"
	"etamoo/server"
	"etamoo/types"
	"etamoo/vm"
)

// World is the fixture the scenarios run against: a small object tree
// with a wizard player whose output is captured.
type World struct {
	Srv    *server.Server
	Wizard types.ObjID
	Room   types.ObjID
	Out    *RecordingConn
}

// RecordingConn captures notify() output for assertions.
type RecordingConn struct {
	mu    sync.Mutex
	Lines []string
}

func (rc *RecordingConn) Send(line string) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.Lines = append(rc.Lines, line)
	return nil
}

func (rc *RecordingConn) Close() error { return nil }

// Snapshot returns the captured lines.
func (rc *RecordingConn) Snapshot() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]string, len(rc.Lines))
	copy(out, rc.Lines)
	return out
}

// NewWorld builds the fixture: #0 system, #1 root, #2 room, #3 wizard
// logged in on a recording connection.
func NewWorld() (*World, error) {
	store := db.NewStore()
	system, err := store.Create(types.ObjNothing, 3)
	if err != nil {
		return nil, err
	}
	system.Name = "System Object"
	root, err := store.Create(types.ObjNothing, 3)
	if err != nil {
		return nil, err
	}
	root.Name = "Root Class"
	room, err := store.Create(root.ID, 3)
	if err != nil {
		return nil, err
	}
	room.Name = "Test Room"
	wizard, err := store.Create(root.ID, 3)
	if err != nil {
		return nil, err
	}
	wizard.Name = "Wizard"
	store.Modify(wizard.ID, func(o *db.Object) error {
		o.Flags = o.Flags.Set(db.FlagPlayer | db.FlagProgrammer | db.FlagWizard)
		return nil
	})
	if code := store.MoveRaw(wizard.ID, room.ID); code != types.E_NONE {
		return nil, fmt.Errorf("placing wizard: %s", code)
	}

	// A tell verb so scenarios can observe ordering through notify.
	tell := &db.Verb{
		Names: []string{"tell"},
		Owner: wizard.ID,
		Perms: db.VerbRead | db.VerbExecute | db.VerbDebug,
		Args:  db.VerbArgs{Dobj: db.ArgNone, Prep: db.PrepNone, Iobj: db.ArgNone},
	}
	if diags := db.ProgramVerb(tell, []string{`notify(this, tostr(@args));`}); diags != nil {
		return nil, fmt.Errorf("tell verb: %s", diags[0])
	}
	store.AddVerb(root.ID, tell)

	log := server.NewLogger()
	srv := server.NewServer(store, log)

	w := &World{Srv: srv, Wizard: wizard.ID, Room: room.ID, Out: &RecordingConn{}}
	info := srv.Conns.NewConnection(w.Out, "test")
	srv.Conns.Login(info.ID, wizard.ID)
	return w, nil
}

// Eval runs one scenario source as the wizard.
func (w *World) Eval(source string) *vm.Outcome {
	if !strings.HasSuffix(strings.TrimSpace(source), ";") {
		source += ";"
	}
	return w.Srv.EvalString(w.Wizard, source)
}
