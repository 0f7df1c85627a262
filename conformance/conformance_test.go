package conformance

import (
	"testing"
	"time"

	"etamoo/types"
	"etamoo/vm"
)

func TestScenarios(t *testing.T) {
	tests, err := LoadAllTests()
	if err != nil {
		t.Fatalf("loading scenarios: %v", err)
	}
	if len(tests) == 0 {
		t.Fatal("no scenarios found")
	}

	for _, lt := range tests {
		lt := lt
		t.Run(lt.Suite.Suite+"/"+lt.Test.Name, func(t *testing.T) {
			w, err := NewWorld()
			if err != nil {
				t.Fatalf("world: %v", err)
			}
			out := w.Eval(lt.Test.Eval)

			if lt.Test.Error != "" {
				code, ok := types.ErrorFromString(lt.Test.Error)
				if !ok {
					t.Fatalf("bad expected error %q", lt.Test.Error)
				}
				if out.Kind != vm.OutUncaught {
					t.Fatalf("expected error %s, got outcome %v (value %v)",
						lt.Test.Error, out.Kind, out.Value)
				}
				if out.Err.Error != code {
					t.Fatalf("expected %s, raised %s", code, out.Err.Error)
				}
				return
			}

			if out.Kind != vm.OutUncaught && out.Kind != vm.OutDone {
				t.Fatalf("unexpected outcome %v", out.Kind)
			}
			if out.Kind == vm.OutUncaught {
				t.Fatalf("raised %s: %s", out.Err.Error, out.Err.Msg)
			}
			want, err := types.ParseLiteral(lt.Test.Expect)
			if err != nil {
				t.Fatalf("bad expect literal %q: %v", lt.Test.Expect, err)
			}
			if !types.Indistinguishable(out.Value, want) {
				t.Fatalf("got %s, want %s", types.ToLiteral(out.Value), lt.Test.Expect)
			}
		})
	}
}

// TestForkOrdering runs the classic fork scenario end to end through
// the scheduler: the parent's output lands before the forked body's,
// and the fork label holds a fresh task id.
func TestForkOrdering(t *testing.T) {
	w, err := NewWorld()
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	w.Srv.Start()
	defer w.Srv.Stop()

	out := w.Eval(`
		fork tid (1)
			player:tell("late");
		endfork
		player:tell("early");
		return tid;
	`)
	if out.Kind != vm.OutDone {
		t.Fatalf("outcome %v", out.Kind)
	}
	id, ok := out.Value.(types.IntValue)
	if !ok || id.Val <= 0 {
		t.Fatalf("fork label did not bind a task id: %v", out.Value)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		lines := w.Out.Snapshot()
		if len(lines) >= 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	lines := w.Out.Snapshot()
	if len(lines) < 2 {
		t.Fatalf("forked task never ran; output %v", lines)
	}
	if lines[0] != "early" || lines[1] != "late" {
		t.Fatalf("wrong ordering: %v", lines)
	}
}

// TestSuspendResume covers timed suspension: wall time advances by at
// least the requested delay and the wake value is 0.
func TestSuspendResume(t *testing.T) {
	w, err := NewWorld()
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	w.Srv.Start()
	defer w.Srv.Stop()

	start := time.Now()
	out := w.Eval(`
		fork (0)
			x = suspend(1);
			player:tell("woke", x);
		endfork
		return 1;
	`)
	if out.Kind != vm.OutDone {
		t.Fatalf("outcome %v", out.Kind)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(w.Out.Snapshot()) >= 1 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	lines := w.Out.Snapshot()
	if len(lines) != 1 || lines[0] != "woke0" {
		t.Fatalf("suspend output: %v", lines)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Fatalf("woke after %v, before the requested second", elapsed)
	}
}
