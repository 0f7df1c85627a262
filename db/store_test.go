package db

import (
	"testing"

	"etamoo/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	for i := 0; i < 3; i++ {
		if _, err := s.Create(types.ObjNothing, 0); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestCreateNumbersMonotonic(t *testing.T) {
	s := testStore(t)
	obj, err := s.Create(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if obj.ID != 3 {
		t.Errorf("new object #%d, want #3", obj.ID)
	}
	if s.MaxObject() != 3 {
		t.Errorf("max_object %d", s.MaxObject())
	}
	// Recycling does not lower the counter.
	if err := s.Recycle(3); err != nil {
		t.Fatal(err)
	}
	if s.MaxObject() != 3 {
		t.Errorf("max_object after recycle %d", s.MaxObject())
	}
	next, err := s.Create(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if next.ID != 4 {
		t.Errorf("post-recycle create got #%d", next.ID)
	}
}

func TestResetMaxObject(t *testing.T) {
	s := testStore(t)
	o, _ := s.Create(types.ObjNothing, 0)
	s.Recycle(o.ID)
	s.ResetMaxObject()
	if s.MaxObject() != 2 {
		t.Errorf("max_object %d, want 2", s.MaxObject())
	}
}

func TestChParentCycles(t *testing.T) {
	s := testStore(t)
	// 1 under 0, 2 under 1.
	if code := s.ChParent(1, 0); code != types.E_NONE {
		t.Fatalf("chparent: %s", code)
	}
	if code := s.ChParent(2, 1); code != types.E_NONE {
		t.Fatalf("chparent: %s", code)
	}
	if code := s.ChParent(0, 0); code != types.E_RECMOVE {
		t.Errorf("self-parent: %s", code)
	}
	if code := s.ChParent(0, 2); code != types.E_RECMOVE {
		t.Errorf("descendant parent: %s", code)
	}
	// The failed attempts must not disturb the chain.
	if s.Get(0).Parent != types.ObjNothing {
		t.Errorf("parent of #0 changed to #%d", s.Get(0).Parent)
	}
	if s.Get(2).Parent != 1 {
		t.Errorf("parent of #2 changed")
	}
}

func TestChildrenTracking(t *testing.T) {
	s := testStore(t)
	s.ChParent(1, 0)
	s.ChParent(2, 0)
	if got := s.Get(0).Children; len(got) != 2 {
		t.Fatalf("children %v", got)
	}
	s.ChParent(1, 2)
	kids := s.Get(0).Children
	if len(kids) != 1 || kids[0] != 2 {
		t.Errorf("children of #0 after move: %v", kids)
	}
	kids = s.Get(2).Children
	if len(kids) != 1 || kids[0] != 1 {
		t.Errorf("children of #2: %v", kids)
	}
}

func TestMoveContents(t *testing.T) {
	s := testStore(t)
	if code := s.MoveRaw(1, 0); code != types.E_NONE {
		t.Fatalf("move: %s", code)
	}
	if s.Get(1).Location != 0 {
		t.Error("location not set")
	}
	if got := s.Get(0).Contents; len(got) != 1 || got[0] != 1 {
		t.Errorf("contents %v", got)
	}
	// Moving a container into itself, directly or transitively.
	if code := s.MoveRaw(0, 1); code != types.E_RECMOVE {
		t.Errorf("recursive move: %s", code)
	}
	if code := s.MoveRaw(1, types.ObjNothing); code != types.E_NONE {
		t.Fatalf("move to nothing: %s", code)
	}
	if len(s.Get(0).Contents) != 0 {
		t.Error("old container still lists mover")
	}
}

func TestPropertyInheritance(t *testing.T) {
	s := testStore(t)
	s.ChParent(1, 0)
	if code := s.AddProperty(0, "hue", types.NewStr("red"), 0, PropRead|PropWrite); code != types.E_NONE {
		t.Fatalf("add: %s", code)
	}

	v, code := s.GetProperty(1, "hue")
	if code != types.E_NONE || !v.Equal(types.NewStr("red")) {
		t.Fatalf("inherited read: %v %s", v, code)
	}

	if code := s.SetProperty(1, "hue", types.NewStr("blue")); code != types.E_NONE {
		t.Fatalf("override: %s", code)
	}
	v, _ = s.GetProperty(1, "hue")
	if !v.Equal(types.NewStr("blue")) {
		t.Error("override not visible")
	}
	v, _ = s.GetProperty(0, "hue")
	if !v.Equal(types.NewStr("red")) {
		t.Error("override leaked to parent")
	}

	if code := s.ClearProperty(1, "hue"); code != types.E_NONE {
		t.Fatalf("clear: %s", code)
	}
	v, _ = s.GetProperty(1, "hue")
	if !v.Equal(types.NewStr("red")) {
		t.Error("clear did not restore inheritance")
	}
	clear, _ := s.IsClearProperty(1, "hue")
	if !clear {
		t.Error("is_clear_property false after clear")
	}

	// Clearing on the defining object is invalid.
	if code := s.ClearProperty(0, "hue"); code != types.E_INVARG {
		t.Errorf("clear on definer: %s", code)
	}
}

func TestAddPropertyConflicts(t *testing.T) {
	s := testStore(t)
	s.ChParent(1, 0)
	s.AddProperty(0, "size", types.NewInt(1), 0, PropRead)
	if code := s.AddProperty(1, "size", types.NewInt(2), 0, PropRead); code != types.E_INVARG {
		t.Errorf("shadowing ancestor: %s", code)
	}
	s.AddProperty(1, "weight", types.NewInt(1), 0, PropRead)
	if code := s.AddProperty(0, "weight", types.NewInt(2), 0, PropRead); code != types.E_INVARG {
		t.Errorf("shadowing descendant: %s", code)
	}
}

func TestDeletePropertyRemovesSubtreeValues(t *testing.T) {
	s := testStore(t)
	s.ChParent(1, 0)
	s.AddProperty(0, "hue", types.NewStr("red"), 0, PropRead|PropWrite)
	s.SetProperty(1, "hue", types.NewStr("blue"))
	if code := s.DeleteProperty(1, "hue"); code != types.E_PROPNF {
		t.Errorf("delete on non-definer: %s", code)
	}
	if code := s.DeleteProperty(0, "hue"); code != types.E_NONE {
		t.Fatalf("delete: %s", code)
	}
	if _, code := s.GetProperty(1, "hue"); code != types.E_PROPNF {
		t.Errorf("child still sees deleted property: %s", code)
	}
}

func TestVerbNameMatching(t *testing.T) {
	tests := []struct {
		alias string
		word  string
		want  bool
	}{
		{"look", "look", true},
		{"look", "LOOK", true},
		{"look", "loo", false},
		{"l*ook", "l", true},
		{"l*ook", "loo", true},
		{"l*ook", "look", true},
		{"l*ook", "looks", false},
		{"foo*", "foo", true},
		{"foo*", "foobar", true},
		{"foo*", "fo", false},
		{"*", "anything", true},
	}
	for _, tt := range tests {
		if got := VerbNameMatch(tt.alias, tt.word); got != tt.want {
			t.Errorf("VerbNameMatch(%q, %q) = %v", tt.alias, tt.word, got)
		}
	}
}

func TestFindVerbWalksChain(t *testing.T) {
	s := testStore(t)
	s.ChParent(1, 0)
	v := &Verb{Names: []string{"ping"}, Perms: VerbRead | VerbExecute}
	s.AddVerb(0, v)
	found, loc, code := s.FindVerb(1, "ping")
	if code != types.E_NONE || found != v || loc != 0 {
		t.Errorf("FindVerb: %v #%d %s", found, loc, code)
	}
	if _, _, code := s.FindVerb(1, "pong"); code != types.E_VERBNF {
		t.Errorf("missing verb: %s", code)
	}
}

func TestCommandVerbArgSpecs(t *testing.T) {
	s := testStore(t)
	get := &Verb{
		Names: []string{"get"},
		Perms: VerbRead | VerbExecute,
		Args:  VerbArgs{Dobj: ArgAny, Prep: PrepNone, Iobj: ArgNone},
	}
	put := &Verb{
		Names: []string{"put"},
		Perms: VerbRead | VerbExecute,
		Args:  VerbArgs{Dobj: ArgAny, Prep: 3 /* in */, Iobj: ArgThis},
	}
	s.AddVerb(0, get)
	s.AddVerb(0, put)

	if v, _, ok := s.FindCommandVerb(0, "get", 1, PrepNone, types.ObjNothing); !ok || v != get {
		t.Error("get should match")
	}
	if _, _, ok := s.FindCommandVerb(0, "get", 1, 3, 2); ok {
		t.Error("get must not match with a preposition")
	}
	if v, _, ok := s.FindCommandVerb(0, "put", 1, 3, 0); !ok || v != put {
		t.Error("put should match with iobj == this")
	}
	if _, _, ok := s.FindCommandVerb(0, "put", 1, 3, 2); ok {
		t.Error("put must not match foreign iobj")
	}
}

func TestRenumberRewritesReferences(t *testing.T) {
	s := testStore(t)
	s.ChParent(2, 1)
	s.MoveRaw(2, 0)
	s.Recycle(1) // opens slot #1... but #2's parent falls back first
	o, _ := s.Create(types.ObjNothing, 2)
	newID, err := s.Renumber(o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if newID != 1 {
		t.Fatalf("renumber landed on #%d", newID)
	}
	if s.Get(o.ID) == nil && !s.Valid(newID) {
		t.Error("renumbered object lost")
	}
}

func TestPrepositionTable(t *testing.T) {
	spec, start, end, text := MatchPreposition([]string{"ball", "in", "front", "of", "box"})
	if spec != 2 || start != 1 || end != 4 || text != "in front of" {
		t.Errorf("multi-word prep: %d %d %d %q", spec, start, end, text)
	}
	spec, _, _, _ = MatchPreposition([]string{"x", "onto", "y"})
	if spec != 4 {
		t.Errorf("onto: %d", spec)
	}
	if spec, _, _, _ := MatchPreposition([]string{"no", "prep", "here"}); spec != PrepNone {
		t.Errorf("found phantom preposition %d", spec)
	}
	if p, ok := ParsePrep("on top of/on/onto/upon"); !ok || p != 4 {
		t.Errorf("ParsePrep alias list: %d %v", p, ok)
	}
}
