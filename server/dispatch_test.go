package server

import (
	"sync"
	"testing"
	"time"

	"etamoo/db"
	"etamoo/types"
)

type captureConn struct {
	mu    sync.Mutex
	lines []string
}

func (c *captureConn) Send(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	return nil
}

func (c *captureConn) Close() error { return nil }

func (c *captureConn) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

func dispatchFixture(t *testing.T) (*Server, types.ObjID, *captureConn) {
	t.Helper()
	store := db.NewStore()
	system, _ := store.Create(types.ObjNothing, 2)
	system.Name = "system"
	room, _ := store.Create(types.ObjNothing, 2)
	room.Name = "lobby"
	player, _ := store.Create(types.ObjNothing, 2)
	player.Name = "Tester"
	store.Modify(player.ID, func(o *db.Object) error {
		o.Flags = o.Flags.Set(db.FlagPlayer | db.FlagProgrammer | db.FlagWizard)
		return nil
	})
	store.MoveRaw(player.ID, room.ID)

	echo := &db.Verb{
		Names: []string{"echo"},
		Owner: player.ID,
		Perms: db.VerbRead | db.VerbExecute | db.VerbDebug,
		Args:  db.VerbArgs{Dobj: db.ArgAny, Prep: db.PrepAny, Iobj: db.ArgAny},
	}
	if diags := db.ProgramVerb(echo, []string{`notify(player, "echo:" + argstr);`}); diags != nil {
		t.Fatalf("program: %v", diags)
	}
	store.AddVerb(room.ID, echo)

	srv := NewServer(store, NewLogger())
	srv.Start()
	t.Cleanup(srv.Stop)

	conn := &captureConn{}
	info := srv.Conns.NewConnection(conn, "test")
	srv.Conns.Login(info.ID, player.ID)
	return srv, player.ID, conn
}

func waitFor(t *testing.T, conn *captureConn, n int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if lines := conn.snapshot(); len(lines) >= n {
			return lines
		}
		time.Sleep(10 * time.Millisecond)
	}
	return conn.snapshot()
}

func TestDispatchRunsRoomVerb(t *testing.T) {
	srv, player, conn := dispatchFixture(t)
	srv.HandleLine(player, "echo hello world")
	lines := waitFor(t, conn, 1)
	if len(lines) != 1 || lines[0] != "echo:hello world" {
		t.Fatalf("output %v", lines)
	}
}

func TestDispatchUnknownVerb(t *testing.T) {
	srv, player, conn := dispatchFixture(t)
	srv.HandleLine(player, "xyzzy")
	lines := waitFor(t, conn, 1)
	if len(lines) != 1 || lines[0] != "I couldn't understand that." {
		t.Fatalf("output %v", lines)
	}
}
