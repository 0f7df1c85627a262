package main

import (
	"fmt"
	"strings"

	"etamoo/db"
	"etamoo/types"
)

// bootstrapStore builds the minimal starter world: #0 the system
// object, #1 the root class, #2 the first room, #3 a wizard player.
// Enough verb code to log in, speak, and evaluate expressions.
func bootstrapStore() (*db.Store, error) {
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
	room.Name = "The First Room"

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

	addVerb := func(on types.ObjID, names string, args db.VerbArgs, code []string) error {
		v := &db.Verb{
			Names: strings.Fields(names),
			Owner: wizard.ID,
			Perms: db.VerbRead | db.VerbExecute | db.VerbDebug,
			Args:  args,
		}
		if diags := db.ProgramVerb(v, code); diags != nil {
			return fmt.Errorf("bootstrap verb %s: %s", names, diags[0])
		}
		_, dbcode := store.AddVerb(on, v)
		if dbcode != types.E_NONE {
			return fmt.Errorf("bootstrap verb %s: %s", names, dbcode)
		}
		return nil
	}

	anyArgs := db.VerbArgs{Dobj: db.ArgAny, Prep: db.PrepAny, Iobj: db.ArgAny}
	noneArgs := db.VerbArgs{Dobj: db.ArgNone, Prep: db.PrepNone, Iobj: db.ArgNone}

	verbs := []struct {
		on    types.ObjID
		names string
		args  db.VerbArgs
		code  []string
	}{
		{system.ID, "do_login_command", noneArgs, []string{
			`if (args && args[1] == "connect")`,
			`  for p in (players())`,
			`    if (p.wizard)`,
			`      return p;`,
			`    endif`,
			`  endfor`,
			`endif`,
			`notify(player, "Try: connect wizard");`,
			`return #-1;`,
		}},
		{system.ID, "user_connected", noneArgs, []string{
			`notify(args[1], "*** Connected ***");`,
		}},
		{root.ID, "say", anyArgs, []string{
			`notify(player, tostr("You say, \"", argstr, "\""));`,
		}},
		{root.ID, "look l*ook", noneArgs, []string{
			`here = player.location;`,
			`if (valid(here))`,
			`  notify(player, here.name);`,
			`endif`,
		}},
		{root.ID, "eval", anyArgs, []string{
			`notify(player, "eval is wizard-side; use the ; prefix.");`,
		}},
	}
	for _, v := range verbs {
		if err := addVerb(v.on, v.names, v.args, v.code); err != nil {
			return nil, err
		}
	}

	store.AddProperty(system.ID, "server_options", types.NewObj(system.ID),
		wizard.ID, db.PropRead)
	store.LoadServerOptions()
	return store, nil
}
