package vm_test

import (
	"testing"
	"time"

	"etamoo/builtins"
	"etamoo/db"
	"etamoo/parser"
	"etamoo/types"
	"etamoo/vm"
)

// fixture builds a small world: #0 system, #1 root, #2 wizard player.
func fixture(t *testing.T) (*db.Store, *builtins.Registry, types.ObjID) {
	t.Helper()
	store := db.NewStore()
	system, err := store.Create(types.ObjNothing, 2)
	if err != nil {
		t.Fatal(err)
	}
	system.Name = "system"
	root, err := store.Create(types.ObjNothing, 2)
	if err != nil {
		t.Fatal(err)
	}
	root.Name = "root"
	wiz, err := store.Create(root.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	wiz.Name = "wizard"
	store.Modify(wiz.ID, func(o *db.Object) error {
		o.Flags = o.Flags.Set(db.FlagPlayer | db.FlagProgrammer | db.FlagWizard)
		return nil
	})
	return store, builtins.NewRegistry(store), wiz.ID
}

func machineFor(t *testing.T, store *db.Store, reg *builtins.Registry, player types.ObjID, source string) *vm.VM {
	t.Helper()
	p := parser.NewParser(source)
	stmts, err := p.ParseProgram()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	prog, err := vm.CompileReturningLast(stmts)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	m := vm.New(store, reg)
	m.Player = player
	m.Deadline = time.Now().Add(5 * time.Second)
	m.PushFrame(prog, types.ObjNothing, player, player, "test", types.ObjNothing, true, nil)
	return m
}

func evalSource(t *testing.T, source string) *vm.Outcome {
	t.Helper()
	store, reg, wiz := fixture(t)
	return machineFor(t, store, reg, wiz, source).Run()
}

func wantValue(t *testing.T, source, wantLiteral string) {
	t.Helper()
	out := evalSource(t, source)
	if out.Kind != vm.OutDone {
		t.Fatalf("%q: outcome %v (err %s: %s)", source, out.Kind, out.Err.Error, out.Err.Msg)
	}
	want, err := types.ParseLiteral(wantLiteral)
	if err != nil {
		t.Fatalf("bad literal %q: %v", wantLiteral, err)
	}
	if !types.Indistinguishable(out.Value, want) {
		t.Fatalf("%q: got %s, want %s", source, types.ToLiteral(out.Value), wantLiteral)
	}
}

func wantError(t *testing.T, source string, code types.ErrorCode) {
	t.Helper()
	out := evalSource(t, source)
	if out.Kind != vm.OutUncaught {
		t.Fatalf("%q: outcome %v, want uncaught %s", source, out.Kind, code)
	}
	if out.Err.Error != code {
		t.Fatalf("%q: raised %s, want %s", source, out.Err.Error, code)
	}
}

func TestArithmetic(t *testing.T) {
	wantValue(t, "1 + 2;", "3")
	wantValue(t, "7 % 3;", "1")
	wantValue(t, "2 ^ 10;", "1024")
	wantValue(t, "1.5 * 2.0;", "3.0")
	wantValue(t, `"a" + "b";`, `"ab"`)
	wantError(t, "1 / 0;", types.E_DIV)
	wantError(t, "1 % 0;", types.E_DIV)
	wantError(t, "1 + 2.0;", types.E_TYPE)
	wantError(t, `"a" - "b";`, types.E_TYPE)
}

func TestVariables(t *testing.T) {
	wantValue(t, "x = 5; x * 2;", "10")
	wantError(t, "undefined_var;", types.E_VARNF)
	wantValue(t, "x = y = 3; {x, y};", "{3, 3}")
}

func TestIndexing(t *testing.T) {
	wantValue(t, "{1, 2, 3}[2];", "2")
	wantValue(t, `"hello"[2..4];`, `"ell"`)
	wantValue(t, "{10, 20, 30}[$];", "30")
	wantValue(t, "l = {1, {2, 3}}; l[2][$];", "3")
	wantError(t, "{1}[0];", types.E_RANGE)
	wantError(t, `"abc"[1.0];`, types.E_TYPE)
	wantValue(t, `s = "abc"; s[2] = "X"; s;`, `"aXc"`)
	wantError(t, `s = "abc"; s[2] = "XX"; s;`, types.E_INVARG)
}

func TestControlFlow(t *testing.T) {
	wantValue(t, `
		total = 0;
		for i in [1..4]
			for j in ({10, 20})
				total = total + i * j;
			endfor
		endfor
		total;`, "300")
	wantValue(t, `
		x = 0;
		while (1)
			x = x + 1;
			if (x > 4)
				break;
			endif
		endwhile
		x;`, "5")
}

func TestDebugFlagSubstitution(t *testing.T) {
	store, reg, wiz := fixture(t)
	// A verb without the d flag turns raised errors into values.
	quiet := &db.Verb{
		Names: []string{"quiet"},
		Owner: wiz,
		Perms: db.VerbRead | db.VerbExecute, // no d
	}
	if diags := db.ProgramVerb(quiet, []string{"return 1 / 0;"}); diags != nil {
		t.Fatalf("program: %v", diags)
	}
	store.AddVerb(1, quiet)

	m := machineFor(t, store, reg, wiz, "return #1:quiet();")
	out := m.Run()
	if out.Kind != vm.OutDone {
		t.Fatalf("outcome %v", out.Kind)
	}
	if !out.Value.Equal(types.NewErr(types.E_DIV)) {
		t.Fatalf("got %s, want E_DIV value", types.ToLiteral(out.Value))
	}
}

func TestCatchBeatsDebugOff(t *testing.T) {
	store, reg, wiz := fixture(t)
	quiet := &db.Verb{
		Names: []string{"quiet"},
		Owner: wiz,
		Perms: db.VerbRead | db.VerbExecute,
	}
	if diags := db.ProgramVerb(quiet, []string{"return `1 / 0 ! E_DIV => \"caught\"';"}); diags != nil {
		t.Fatalf("program: %v", diags)
	}
	store.AddVerb(1, quiet)

	out := machineFor(t, store, reg, wiz, "return #1:quiet();").Run()
	if out.Kind != vm.OutDone || !out.Value.Equal(types.NewStr("caught")) {
		t.Fatalf("got %v %v", out.Kind, out.Value)
	}
}

func TestVerbCallInherited(t *testing.T) {
	store, reg, wiz := fixture(t)
	parent := &db.Verb{
		Names: []string{"greet"},
		Owner: wiz,
		Perms: db.VerbRead | db.VerbExecute | db.VerbDebug,
	}
	db.ProgramVerb(parent, []string{`return "hello " + args[1];`})
	store.AddVerb(1, parent)

	out := machineFor(t, store, reg, wiz, `return #2:greet("you");`).Run()
	if out.Kind != vm.OutDone || !out.Value.Equal(types.NewStr("hello you")) {
		t.Fatalf("inherited call: %v %v", out.Kind, out.Value)
	}
}

func TestMaxRecursion(t *testing.T) {
	store, reg, wiz := fixture(t)
	loop := &db.Verb{
		Names: []string{"spin"},
		Owner: wiz,
		Perms: db.VerbRead | db.VerbExecute | db.VerbDebug,
	}
	db.ProgramVerb(loop, []string{"return #1:spin();"})
	store.AddVerb(1, loop)

	out := machineFor(t, store, reg, wiz, "return #1:spin();").Run()
	if out.Kind != vm.OutUncaught || out.Err.Error != types.E_MAXREC {
		t.Fatalf("got %v %s", out.Kind, out.Err.Error)
	}
}

func TestTickExhaustion(t *testing.T) {
	store, reg, wiz := fixture(t)
	m := machineFor(t, store, reg, wiz, "while (1) endwhile")
	m.TickLimit = 10000
	out := m.Run()
	if out.Kind != vm.OutTicksExhausted {
		t.Fatalf("outcome %v", out.Kind)
	}
	if len(out.Traceback) == 0 {
		t.Error("budget abort should carry a traceback")
	}
}

func TestTimeoutIsUncatchable(t *testing.T) {
	store, reg, wiz := fixture(t)
	m := machineFor(t, store, reg, wiz, `
		try
			while (1) endwhile
		except (ANY)
			return "caught";
		endtry`)
	m.TickLimit = 5000
	out := m.Run()
	if out.Kind != vm.OutTicksExhausted {
		t.Fatalf("timeout was caught: %v %v", out.Kind, out.Value)
	}
}

func TestSuspendResume(t *testing.T) {
	store, reg, wiz := fixture(t)
	m := machineFor(t, store, reg, wiz, "x = suspend(5); return x + 1;")
	out := m.Run()
	if out.Kind != vm.OutSuspend {
		t.Fatalf("outcome %v", out.Kind)
	}
	if out.Seconds != 5 {
		t.Fatalf("seconds %v", out.Seconds)
	}
	// The retained machine is the continuation: push the wake value
	// and keep going mid-expression.
	m.Resume(types.NewInt(41))
	out = m.Run()
	if out.Kind != vm.OutDone || !out.Value.Equal(types.NewInt(42)) {
		t.Fatalf("resume: %v %v", out.Kind, out.Value)
	}
}

func TestSuspendInsideExpression(t *testing.T) {
	store, reg, wiz := fixture(t)
	m := machineFor(t, store, reg, wiz, "return {1, suspend(0), 3};")
	out := m.Run()
	if out.Kind != vm.OutSuspend {
		t.Fatalf("outcome %v", out.Kind)
	}
	m.Resume(types.NewInt(2))
	out = m.Run()
	want := types.NewList([]types.Value{types.NewInt(1), types.NewInt(2), types.NewInt(3)})
	if out.Kind != vm.OutDone || !out.Value.Equal(want) {
		t.Fatalf("resume mid-list: %v %v", out.Kind, out.Value)
	}
}

// forkRecorder captures fork specs without a scheduler.
type forkRecorder struct {
	specs []*vm.ForkSpec
	next  int64
}

func (f *forkRecorder) Fork(spec *vm.ForkSpec) int64 {
	f.specs = append(f.specs, spec)
	f.next++
	return f.next
}

func TestForkCapturesLocals(t *testing.T) {
	store, reg, wiz := fixture(t)
	rec := &forkRecorder{}
	m := machineFor(t, store, reg, wiz, `
		x = 7;
		fork tid (3)
			y = x;
		endfork
		return {x, tid};`)
	m.Hooks = rec
	out := m.Run()
	if out.Kind != vm.OutDone {
		t.Fatalf("outcome %v (%s)", out.Kind, out.Err.Msg)
	}
	want := types.NewList([]types.Value{types.NewInt(7), types.NewInt(1)})
	if !out.Value.Equal(want) {
		t.Fatalf("got %s", types.ToLiteral(out.Value))
	}
	if len(rec.specs) != 1 {
		t.Fatalf("forks %d", len(rec.specs))
	}
	spec := rec.specs[0]
	if spec.Delay != 3 {
		t.Errorf("delay %v", spec.Delay)
	}

	// Run the child on its snapshot and observe the captured x.
	child := vm.NewForked(store, reg, spec, 1)
	childOut := child.Run()
	if childOut.Kind != vm.OutDone {
		t.Fatalf("child outcome %v", childOut.Kind)
	}
}

func TestScatterDefaultsLazy(t *testing.T) {
	// The default expression must not run when a value is supplied.
	wantValue(t, "{a, ?b = 1 / 0} = {1, 2}; {a, b};", "{1, 2}")
	wantError(t, "{a, ?b = 1 / 0} = {1};", types.E_DIV)
}

func TestPropertyAccess(t *testing.T) {
	store, reg, wiz := fixture(t)
	store.AddProperty(1, "color", types.NewStr("red"), wiz, db.PropRead)
	out := machineFor(t, store, reg, wiz, "return #1.color;").Run()
	if out.Kind != vm.OutDone || !out.Value.Equal(types.NewStr("red")) {
		t.Fatalf("%v %v", out.Kind, out.Value)
	}

	out = machineFor(t, store, reg, wiz, "#1.color = \"blue\"; return #1.color;").Run()
	if out.Kind != vm.OutDone || !out.Value.Equal(types.NewStr("blue")) {
		t.Fatalf("set: %v %v", out.Kind, out.Value)
	}

	out = machineFor(t, store, reg, wiz, "return #1.absent;").Run()
	if out.Kind != vm.OutUncaught || out.Err.Error != types.E_PROPNF {
		t.Fatalf("missing prop: %v %s", out.Kind, out.Err.Error)
	}

	out = machineFor(t, store, reg, wiz, "return #99.name;").Run()
	if out.Kind != vm.OutUncaught || out.Err.Error != types.E_INVIND {
		t.Fatalf("invalid obj: %v %s", out.Kind, out.Err.Error)
	}
}
