package server

import (
	"testing"

	"etamoo/db"
	"etamoo/types"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"get lamp", []string{"get", "lamp"}},
		{`say "hello there" friend`, []string{"say", "hello there", "friend"}},
		{`foo\ bar`, []string{"foo bar"}},
		{"  spaced   out  ", []string{"spaced", "out"}},
		{"", nil},
	}
	for _, tt := range tests {
		got := Tokenize(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Tokenize(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestParseCommand(t *testing.T) {
	cmd := ParseCommand("put ball in box")
	if cmd.Verb != "put" || cmd.Dobjstr != "ball" || cmd.Prepstr != "in" || cmd.Iobjstr != "box" {
		t.Errorf("parsed %+v", cmd)
	}
	if cmd.Argstr != "ball in box" {
		t.Errorf("argstr %q", cmd.Argstr)
	}

	cmd = ParseCommand("look")
	if cmd.Verb != "look" || cmd.Dobjstr != "" || cmd.Prep != db.PrepNone {
		t.Errorf("bare verb parsed %+v", cmd)
	}

	cmd = ParseCommand("put ball in front of big box")
	if cmd.Prepstr != "in front of" || cmd.Iobjstr != "big box" {
		t.Errorf("multi-word prep: %+v", cmd)
	}

	cmd = ParseCommand(`"hello there`)
	if cmd.Verb != "say" || cmd.Argstr != "hello there" {
		t.Errorf("say abbreviation: %+v", cmd)
	}
}

func matcherFixture(t *testing.T) (*db.Store, types.ObjID, types.ObjID) {
	t.Helper()
	store := db.NewStore()
	room, _ := store.Create(types.ObjNothing, 0)
	room.Name = "courtyard"
	player, _ := store.Create(types.ObjNothing, 0)
	player.Name = "Explorer"
	lamp, _ := store.Create(types.ObjNothing, 0)
	lamp.Name = "brass lamp"
	rock, _ := store.Create(types.ObjNothing, 0)
	rock.Name = "rock"
	pebble, _ := store.Create(types.ObjNothing, 0)
	pebble.Name = "rocky pebble"
	store.MoveRaw(player.ID, room.ID)
	store.MoveRaw(lamp.ID, player.ID)
	store.MoveRaw(rock.ID, room.ID)
	store.MoveRaw(pebble.ID, room.ID)
	return store, player.ID, room.ID
}

func TestMatchObject(t *testing.T) {
	store, player, room := matcherFixture(t)
	tests := []struct {
		name string
		want types.ObjID
	}{
		{"me", player},
		{"here", room},
		{"#2", 2},
		{"#-1", types.ObjNothing},
		{"brass lamp", 2},
		{"rock", 3},  // exact beats the "rocky pebble" prefix
		{"rocky", 4}, // prefix match
		{"nothing like this", types.ObjFailedMatch},
		{"#99", types.ObjFailedMatch},
	}
	for _, tt := range tests {
		if got := MatchObject(store, player, room, tt.name); got != tt.want {
			t.Errorf("MatchObject(%q) = #%d, want #%d", tt.name, got, tt.want)
		}
	}
}

func TestMatchAmbiguous(t *testing.T) {
	store, player, room := matcherFixture(t)
	extra, _ := store.Create(types.ObjNothing, 0)
	extra.Name = "rocking chair"
	store.MoveRaw(extra.ID, room)
	if got := MatchObject(store, player, room, "rock"); got != 3 {
		t.Errorf("exact match lost: #%d", got)
	}
	if got := MatchObject(store, player, room, "roc"); got != types.ObjAmbiguous {
		t.Errorf("expected ambiguous, got #%d", got)
	}
}
