package server

import (
	"strconv"
	"strings"

	"etamoo/db"
	"etamoo/types"
)

// MatchObject resolves an object name against the player's
// surroundings: #N syntax, "me"/"here", then exact and prefix name
// matches over inventory and room contents.
func MatchObject(store *db.Store, player, location types.ObjID, name string) types.ObjID {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.ObjNothing
	}

	if strings.HasPrefix(name, "#") {
		num, err := strconv.ParseInt(name[1:], 10, 64)
		if err != nil {
			return types.ObjFailedMatch
		}
		if num < 0 {
			return types.ObjID(num)
		}
		if store.Valid(types.ObjID(num)) {
			return types.ObjID(num)
		}
		return types.ObjFailedMatch
	}

	switch strings.ToLower(name) {
	case "me":
		return player
	case "here":
		return location
	}

	var candidates []types.ObjID
	if p := store.Get(player); p != nil {
		candidates = append(candidates, p.Contents...)
	}
	if loc := store.Get(location); loc != nil {
		for _, id := range loc.Contents {
			if id != player {
				candidates = append(candidates, id)
			}
		}
	}

	var exact, partial []types.ObjID
	for _, id := range candidates {
		obj := store.Get(id)
		if obj == nil {
			continue
		}
		for _, alias := range objectNames(store, obj) {
			if strings.EqualFold(alias, name) {
				exact = append(exact, id)
				break
			}
			if len(name) < len(alias) && strings.EqualFold(alias[:len(name)], name) {
				partial = append(partial, id)
				break
			}
		}
	}

	pick := func(ids []types.ObjID) types.ObjID {
		switch len(ids) {
		case 0:
			return types.ObjFailedMatch
		case 1:
			return ids[0]
		default:
			return types.ObjAmbiguous
		}
	}
	if len(exact) > 0 {
		return pick(exact)
	}
	return pick(partial)
}

// objectNames yields the names an object answers to: its name plus an
// "aliases" property when one holds a list of strings.
func objectNames(store *db.Store, obj *db.Object) []string {
	names := []string{obj.Name}
	if v, code := store.GetProperty(obj.ID, "aliases"); code == types.E_NONE {
		if list, ok := v.(types.ListValue); ok {
			for _, e := range list.Elements() {
				if s, ok := e.(types.StrValue); ok {
					names = append(names, s.Value())
				}
			}
		}
	}
	return names
}
