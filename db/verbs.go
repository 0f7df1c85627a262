package db

import (
	"strings"

	"etamoo/parser"
	"etamoo/types"
)

// FindVerb resolves a verb for a colon call: the first verb matching
// name (alias/wildcard rules) walking the parent chain from id.
// Returns the verb and the object it was found on.
func (s *Store) FindVerb(id types.ObjID, name string) (*Verb, types.ObjID, types.ErrorCode) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return nil, types.ObjNothing, types.E_INVIND
	}
	for cur := id; cur >= 0; {
		o, ok := s.objects[cur]
		if !ok || o.Recycled {
			break
		}
		for _, v := range o.Verbs {
			if v.MatchesName(name) {
				return v, cur, types.E_NONE
			}
		}
		cur = o.Parent
	}
	return nil, types.ObjNothing, types.E_VERBNF
}

// FindVerbOnOrAbove is FindVerb starting at an explicit object, used by
// pass() to re-dispatch from a verb location's parent.
func (s *Store) FindVerbOnOrAbove(start types.ObjID, name string) (*Verb, types.ObjID, types.ErrorCode) {
	return s.FindVerb(start, name)
}

// FindCommandVerb resolves a command verb on id: name match plus
// argument specification match against the parsed command shape.
func (s *Store) FindCommandVerb(id types.ObjID, word string, dobj types.ObjID, prep PrepSpec, iobj types.ObjID) (*Verb, types.ObjID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return nil, types.ObjNothing, false
	}
	for cur := id; cur >= 0; {
		o, ok := s.objects[cur]
		if !ok || o.Recycled {
			break
		}
		for _, v := range o.Verbs {
			if v.MatchesName(word) && v.Args.Matches(dobj, prep, iobj, id) {
				return v, cur, true
			}
		}
		cur = o.Parent
	}
	return nil, types.ObjNothing, false
}

// GetVerb addresses a verb defined on obj itself by name string or
// 1-based integer index, the addressing verb_info and friends use.
func (s *Store) GetVerb(id types.ObjID, desc types.Value) (*Verb, int, types.ErrorCode) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return nil, 0, types.E_INVARG
	}
	switch d := desc.(type) {
	case types.IntValue:
		i := int(d.Val)
		if i < 1 || i > len(obj.Verbs) {
			return nil, 0, types.E_VERBNF
		}
		return obj.Verbs[i-1], i - 1, types.E_NONE
	case types.StrValue:
		for i, v := range obj.Verbs {
			if v.MatchesName(d.Value()) {
				return v, i, types.E_NONE
			}
		}
		return nil, 0, types.E_VERBNF
	default:
		return nil, 0, types.E_TYPE
	}
}

// AddVerb appends a verb definition to obj and returns its 1-based
// index.
func (s *Store) AddVerb(id types.ObjID, v *Verb) (int, types.ErrorCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return 0, types.E_INVARG
	}
	obj.Verbs = append(obj.Verbs, v)
	return len(obj.Verbs), types.E_NONE
}

// DeleteVerb removes a verb defined on obj.
func (s *Store) DeleteVerb(id types.ObjID, desc types.Value) types.ErrorCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return types.E_INVARG
	}
	idx := -1
	switch d := desc.(type) {
	case types.IntValue:
		i := int(d.Val)
		if i < 1 || i > len(obj.Verbs) {
			return types.E_VERBNF
		}
		idx = i - 1
	case types.StrValue:
		for i, v := range obj.Verbs {
			if v.MatchesName(d.Value()) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return types.E_VERBNF
		}
	default:
		return types.E_TYPE
	}
	obj.Verbs = append(obj.Verbs[:idx], obj.Verbs[idx+1:]...)
	return types.E_NONE
}

// ProgramVerb parses and installs source on a verb, invalidating its
// compiled form. Parse failures return the diagnostics and leave the
// verb untouched.
func ProgramVerb(v *Verb, code []string) []string {
	source := strings.Join(code, "\n")
	p := parser.NewParser(source)
	stmts, err := p.ParseProgram()
	if err != nil {
		return []string{err.Error()}
	}
	v.Code = append([]string(nil), code...)
	v.Program = stmts
	v.Compiled = nil
	return nil
}

// VerbNames lists the full name strings (every alias, space-separated)
// of the verbs defined on obj.
func (s *Store) VerbNames(id types.ObjID) ([]string, types.ErrorCode) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return nil, types.E_INVARG
	}
	out := make([]string, len(obj.Verbs))
	for i, v := range obj.Verbs {
		out[i] = v.NamesString()
	}
	return out, types.E_NONE
}
