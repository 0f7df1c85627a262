package builtins

import (
	"testing"

	"etamoo/db"
	"etamoo/types"
)

func testRegistry(t *testing.T) (*Registry, *types.TaskContext) {
	t.Helper()
	store := db.NewStore()
	for i := 0; i < 3; i++ {
		if _, err := store.Create(types.ObjNothing, 2); err != nil {
			t.Fatal(err)
		}
	}
	store.Modify(2, func(o *db.Object) error {
		o.Flags = o.Flags.Set(db.FlagPlayer | db.FlagWizard)
		return nil
	})
	r := NewRegistry(store)
	ctx := types.NewTaskContext()
	ctx.Player = 2
	ctx.Programmer = 2
	ctx.IsWizard = true
	return r, ctx
}

func call(t *testing.T, r *Registry, ctx *types.TaskContext, name string, args ...types.Value) types.Result {
	t.Helper()
	return r.Call(name, ctx, args)
}

func TestSignatureValidation(t *testing.T) {
	r, ctx := testRegistry(t)

	if res := call(t, r, ctx, "toint"); res.Error != types.E_ARGS {
		t.Errorf("missing arg: %s", res.Error)
	}
	if res := call(t, r, ctx, "toint", types.NewInt(1), types.NewInt(2)); res.Error != types.E_ARGS {
		t.Errorf("extra arg: %s", res.Error)
	}
	if res := call(t, r, ctx, "strsub", types.NewInt(1), types.NewStr("a"), types.NewStr("b")); res.Error != types.E_TYPE {
		t.Errorf("bad type: %s", res.Error)
	}
	// TYPE_NUM accepts both numeric kinds.
	if res := call(t, r, ctx, "abs", types.NewFloat(-1.5)); res.IsError() {
		t.Errorf("abs float: %s", res.Error)
	}
	if res := call(t, r, ctx, "abs", types.NewInt(-3)); res.IsError() {
		t.Errorf("abs int: %s", res.Error)
	}
	if res := call(t, r, ctx, "abs", types.NewStr("x")); res.Error != types.E_TYPE {
		t.Errorf("abs string: %s", res.Error)
	}
	// Names fold case.
	if res := call(t, r, ctx, "TOINT", types.NewStr("12")); res.IsError() || !res.Val.Equal(types.NewInt(12)) {
		t.Errorf("case-folded call: %v", res)
	}
	if res := call(t, r, ctx, "no_such_function"); res.Error != types.E_VERBNF {
		t.Errorf("unknown builtin: %s", res.Error)
	}
}

func TestWizardChecks(t *testing.T) {
	r, ctx := testRegistry(t)
	mortal := types.NewTaskContext()
	mortal.Player = 1
	mortal.Programmer = 1

	if res := call(t, r, mortal, "reset_max_object"); res.Error != types.E_PERM {
		t.Errorf("mortal reset_max_object: %s", res.Error)
	}
	if res := call(t, r, mortal, "set_player_flag", types.NewObj(1), types.NewInt(1)); res.Error != types.E_PERM {
		t.Errorf("mortal set_player_flag: %s", res.Error)
	}
	if res := call(t, r, ctx, "set_player_flag", types.NewObj(1), types.NewInt(1)); res.IsError() {
		t.Errorf("wizard set_player_flag: %s", res.Error)
	}
}

func TestBinaryStringEdgeCases(t *testing.T) {
	r, ctx := testRegistry(t)

	res := call(t, r, ctx, "encode_binary", types.NewStr("a~b"), types.NewInt(10))
	if res.IsError() {
		t.Fatalf("encode: %s", res.Error)
	}
	if !res.Val.Equal(types.NewStr("a~7Eb~0A")) {
		t.Errorf("encoded form %s", res.Val.String())
	}

	res = call(t, r, ctx, "decode_binary", types.NewStr("a~7Eb~0A"))
	if res.IsError() {
		t.Fatalf("decode: %s", res.Error)
	}
	want := types.NewList([]types.Value{types.NewStr("a~b"), types.NewInt(10)})
	if !types.Indistinguishable(res.Val, want) {
		t.Errorf("decoded %s", types.ToLiteral(res.Val))
	}

	for _, bad := range []string{"~", "x~A", "~G0", "tail~5"} {
		if res := call(t, r, ctx, "decode_binary", types.NewStr(bad)); res.Error != types.E_INVARG {
			t.Errorf("decode_binary(%q): %s", bad, res.Error)
		}
	}

	if res := call(t, r, ctx, "encode_binary", types.NewInt(256)); res.Error != types.E_INVARG {
		t.Errorf("encode out-of-range byte: %s", res.Error)
	}
}

func TestCryptRoundTrip(t *testing.T) {
	r, ctx := testRegistry(t)
	res := call(t, r, ctx, "crypt", types.NewStr("secret"), types.NewStr("ab"))
	if res.IsError() {
		t.Fatalf("crypt: %s", res.Error)
	}
	hashed := res.Val.(types.StrValue).Value()
	if len(hashed) < 2 {
		t.Fatalf("hash too short: %q", hashed)
	}
	again := call(t, r, ctx, "crypt", types.NewStr("secret"), types.NewStr(hashed[:2]))
	if !again.Val.Equal(res.Val) {
		t.Error("crypt not stable under its own salt")
	}
	other := call(t, r, ctx, "crypt", types.NewStr("different"), types.NewStr(hashed[:2]))
	if other.Val.Equal(res.Val) {
		t.Error("distinct passwords collide")
	}
}

func TestMatchGroups(t *testing.T) {
	r, ctx := testRegistry(t)
	res := call(t, r, ctx, "match", types.NewStr("2026-08-06"),
		types.NewStr(`(\d+)-(\d+)-(\d+)`))
	if res.IsError() {
		t.Fatalf("match: %s", res.Error)
	}
	m := res.Val.(types.ListValue)
	if m.Len() != 4 {
		t.Fatalf("result shape: %s", types.ToLiteral(m))
	}
	groups := m.Get(3).(types.ListValue)
	first := groups.Get(1).(types.ListValue)
	if !first.Get(1).Equal(types.NewInt(1)) || !first.Get(2).Equal(types.NewInt(4)) {
		t.Errorf("first group %s", types.ToLiteral(first))
	}
	// Unmatched trailing groups report {0, -1}.
	ninth := groups.Get(9).(types.ListValue)
	if !ninth.Get(1).Equal(types.NewInt(0)) || !ninth.Get(2).Equal(types.NewInt(-1)) {
		t.Errorf("unmatched group %s", types.ToLiteral(ninth))
	}

	sub := call(t, r, ctx, "substitute", types.NewStr("year %1, day %3"), m)
	if sub.IsError() || !sub.Val.Equal(types.NewStr("year 2026, day 06")) {
		t.Errorf("substitute: %v", sub.Val)
	}
}

func TestMoveFiresHooks(t *testing.T) {
	r, _ := testRegistry(t)
	var calls []string
	r.VerbCaller = func(obj types.ObjID, verb string, args []types.Value, c *types.TaskContext) types.Result {
		calls = append(calls, verb)
		if verb == "accept" {
			return types.Ok(types.NewInt(1))
		}
		return types.Err(types.E_VERBNF)
	}
	mortal := types.NewTaskContext()
	mortal.Player = 1
	mortal.Programmer = 2 // owns everything in the fixture
	res := call(t, r, mortal, "move", types.NewObj(1), types.NewObj(0))
	if res.IsError() {
		t.Fatalf("move: %s", res.Error)
	}
	if len(calls) < 2 || calls[0] != "accept" || calls[len(calls)-1] != "enterfunc" {
		t.Errorf("hook order %v", calls)
	}

	// A refusing destination yields E_NACC.
	r.VerbCaller = func(obj types.ObjID, verb string, args []types.Value, c *types.TaskContext) types.Result {
		if verb == "accept" {
			return types.Ok(types.NewInt(0))
		}
		return types.Err(types.E_VERBNF)
	}
	res = call(t, r, mortal, "move", types.NewObj(1), types.NewObj(2))
	if res.Error != types.E_NACC {
		t.Errorf("refused move: %s", res.Error)
	}
}
