package db

import (
	"strings"

	"etamoo/types"
)

// Builtin property names: attributes of the object itself, visible
// through the same dotted syntax as stored properties.
var builtinProps = map[string]bool{
	"name": true, "owner": true, "location": true, "contents": true,
	"parent": true, "children": true,
	"player": true, "programmer": true, "wizard": true,
	"r": true, "w": true, "f": true,
}

// IsBuiltinProp reports whether name is an object attribute rather
// than a stored property.
func IsBuiltinProp(name string) bool {
	return builtinProps[strings.ToLower(name)]
}

// GetBuiltinProp reads an object attribute.
func (s *Store) GetBuiltinProp(id types.ObjID, name string) (types.Value, types.ErrorCode) {
	obj := s.Get(id)
	if obj == nil {
		return nil, types.E_INVIND
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch strings.ToLower(name) {
	case "name":
		return types.NewStr(obj.Name), types.E_NONE
	case "owner":
		return types.NewObj(obj.Owner), types.E_NONE
	case "location":
		return types.NewObj(obj.Location), types.E_NONE
	case "parent":
		return types.NewObj(obj.Parent), types.E_NONE
	case "contents":
		return objList(obj.Contents), types.E_NONE
	case "children":
		return objList(obj.Children), types.E_NONE
	case "player":
		return boolInt(obj.Flags.Has(FlagPlayer)), types.E_NONE
	case "programmer":
		return boolInt(obj.IsProgrammer()), types.E_NONE
	case "wizard":
		return boolInt(obj.Flags.Has(FlagWizard)), types.E_NONE
	case "r":
		return boolInt(obj.Flags.Has(FlagRead)), types.E_NONE
	case "w":
		return boolInt(obj.Flags.Has(FlagWrite)), types.E_NONE
	case "f":
		return boolInt(obj.Flags.Has(FlagFertile)), types.E_NONE
	}
	return nil, types.E_PROPNF
}

// SetBuiltinProp writes an object attribute. Flag and name writes are
// permission-checked by the caller; location/contents/parent/children
// are never writable through this path.
func (s *Store) SetBuiltinProp(id types.ObjID, name string, val types.Value) types.ErrorCode {
	obj := s.Get(id)
	if obj == nil {
		return types.E_INVIND
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	setFlag := func(flag ObjectFlags) types.ErrorCode {
		if val.Truthy() {
			obj.Flags = obj.Flags.Set(flag)
		} else {
			obj.Flags = obj.Flags.Clear(flag)
		}
		return types.E_NONE
	}
	switch strings.ToLower(name) {
	case "name":
		sv, ok := val.(types.StrValue)
		if !ok {
			return types.E_TYPE
		}
		obj.Name = sv.Value()
		return types.E_NONE
	case "owner":
		ov, ok := val.(types.ObjValue)
		if !ok {
			return types.E_TYPE
		}
		obj.Owner = ov.Val
		return types.E_NONE
	case "programmer":
		return setFlag(FlagProgrammer)
	case "wizard":
		return setFlag(FlagWizard)
	case "r":
		return setFlag(FlagRead)
	case "w":
		return setFlag(FlagWrite)
	case "f":
		return setFlag(FlagFertile)
	case "location", "contents", "parent", "children", "player":
		// location/parent change via move()/chparent(); the player
		// flag via set_player_flag().
		return types.E_PERM
	}
	return types.E_PROPNF
}

// LookupProperty finds the visible property entry for name on obj,
// walking the parent chain through clear entries. Returns the entry
// holding the value, the definition entry, and the object the value
// entry lives on.
func (s *Store) LookupProperty(id types.ObjID, name string) (value *Property, def *Property, on types.ObjID, code types.ErrorCode) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupPropertyLocked(id, name)
}

func (s *Store) lookupPropertyLocked(id types.ObjID, name string) (*Property, *Property, types.ObjID, types.ErrorCode) {
	key := strings.ToLower(name)
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return nil, nil, types.ObjNothing, types.E_INVIND
	}

	var valueEntry *Property
	valueOn := types.ObjNothing
	sawEntry := false
	for cur := id; cur >= 0; {
		o, ok := s.objects[cur]
		if !ok || o.Recycled {
			break
		}
		if p, ok := o.Properties[key]; ok {
			sawEntry = true
			if valueEntry == nil && !p.Clear {
				valueEntry = p
				valueOn = cur
			}
			if p.Defined {
				return valueEntry, p, valueOn, types.E_NONE
			}
		}
		cur = o.Parent
	}
	if sawEntry && valueEntry != nil {
		return valueEntry, nil, valueOn, types.E_NONE
	}
	return nil, nil, types.ObjNothing, types.E_PROPNF
}

// GetProperty reads a property value, builtin attributes included.
func (s *Store) GetProperty(id types.ObjID, name string) (types.Value, types.ErrorCode) {
	if IsBuiltinProp(name) {
		return s.GetBuiltinProp(id, name)
	}
	value, def, _, code := s.LookupProperty(id, name)
	if code != types.E_NONE {
		return nil, code
	}
	if value == nil {
		// All entries on the chain were clear; the definition supplies
		// the default.
		if def == nil {
			return nil, types.E_PROPNF
		}
		return def.Value, types.E_NONE
	}
	return value.Value, types.E_NONE
}

// SetProperty writes a property value on obj, creating a local entry
// when the property is inherited.
func (s *Store) SetProperty(id types.ObjID, name string, val types.Value) types.ErrorCode {
	if IsBuiltinProp(name) {
		return s.SetBuiltinProp(id, name, val)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(name)
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return types.E_INVIND
	}
	if local, ok := obj.Properties[key]; ok {
		local.Value = val
		local.Clear = false
		return types.E_NONE
	}
	// Inherited: find the definition for perms and owner.
	_, def, _, code := s.lookupPropertyLocked(id, name)
	if code != types.E_NONE {
		return code
	}
	owner := obj.Owner
	perms := PropRead | PropWrite
	propName := name
	if def != nil {
		perms = def.Perms
		propName = def.Name
		if !def.Perms.Has(PropChown) {
			owner = def.Owner
		}
	}
	obj.Properties[key] = &Property{
		Name:  propName,
		Value: val,
		Owner: owner,
		Perms: perms,
	}
	obj.PropOrder = append(obj.PropOrder, key)
	return types.E_NONE
}

// AddProperty defines a new property on obj. It fails E_INVARG when the
// name is already defined on the object, an ancestor, or a descendant,
// or names a builtin attribute.
func (s *Store) AddProperty(id types.ObjID, name string, val types.Value, owner types.ObjID, perms PropPerms) types.ErrorCode {
	if IsBuiltinProp(name) {
		return types.E_INVARG
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(name)
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return types.E_INVIND
	}
	// Anywhere up the chain.
	for cur := id; cur >= 0; {
		o, ok := s.objects[cur]
		if !ok || o.Recycled {
			break
		}
		if p, ok := o.Properties[key]; ok && (p.Defined || cur == id) {
			return types.E_INVARG
		}
		cur = o.Parent
	}
	// Anywhere below.
	if s.definedInDescendants(id, key) {
		return types.E_INVARG
	}
	obj.Properties[key] = &Property{
		Name:    name,
		Value:   val,
		Owner:   owner,
		Perms:   perms,
		Defined: true,
	}
	obj.PropOrder = append(obj.PropOrder, key)
	return types.E_NONE
}

func (s *Store) definedInDescendants(id types.ObjID, key string) bool {
	obj, ok := s.objects[id]
	if !ok {
		return false
	}
	for _, c := range obj.Children {
		child, ok := s.objects[c]
		if !ok || child.Recycled {
			continue
		}
		if p, ok := child.Properties[key]; ok && p.Defined {
			return true
		}
		if s.definedInDescendants(c, key) {
			return true
		}
	}
	return false
}

// DeleteProperty removes a property definition and every descendant's
// local value for it. It fails E_PROPNF unless the property is defined
// on obj itself.
func (s *Store) DeleteProperty(id types.ObjID, name string) types.ErrorCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(name)
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return types.E_INVIND
	}
	p, ok := obj.Properties[key]
	if !ok || !p.Defined {
		return types.E_PROPNF
	}
	delete(obj.Properties, key)
	obj.PropOrder = removeName(obj.PropOrder, key)
	s.deleteInDescendants(id, key)
	return types.E_NONE
}

func (s *Store) deleteInDescendants(id types.ObjID, key string) {
	obj, ok := s.objects[id]
	if !ok {
		return
	}
	for _, c := range obj.Children {
		child, ok := s.objects[c]
		if !ok {
			continue
		}
		if _, ok := child.Properties[key]; ok {
			delete(child.Properties, key)
			child.PropOrder = removeName(child.PropOrder, key)
		}
		s.deleteInDescendants(c, key)
	}
}

// ClearProperty restores inheritance for an inherited property: the
// object's local value is dropped. Clearing a property on its defining
// object is invalid.
func (s *Store) ClearProperty(id types.ObjID, name string) types.ErrorCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(name)
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return types.E_INVIND
	}
	local, ok := obj.Properties[key]
	if ok && local.Defined {
		return types.E_INVARG
	}
	if !ok {
		// Verify the property exists at all up the chain.
		_, _, _, code := s.lookupPropertyLocked(id, name)
		return code
	}
	local.Clear = true
	local.Value = nil
	return types.E_NONE
}

// IsClearProperty reports whether obj takes the inherited value.
func (s *Store) IsClearProperty(id types.ObjID, name string) (bool, types.ErrorCode) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := strings.ToLower(name)
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return false, types.E_INVIND
	}
	local, ok := obj.Properties[key]
	if !ok {
		_, _, _, code := s.lookupPropertyLocked(id, name)
		if code != types.E_NONE {
			return false, code
		}
		return true, types.E_NONE
	}
	if local.Defined {
		return false, types.E_NONE
	}
	return local.Clear, types.E_NONE
}

// PropertyNames returns the names defined on obj itself, in definition
// order.
func (s *Store) PropertyNames(id types.ObjID) ([]string, types.ErrorCode) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return nil, types.E_INVIND
	}
	var out []string
	for _, key := range obj.PropOrder {
		if p, ok := obj.Properties[key]; ok && p.Defined {
			out = append(out, p.Name)
		}
	}
	return out, types.E_NONE
}

func objList(ids []types.ObjID) types.Value {
	vals := make([]types.Value, len(ids))
	for i, id := range ids {
		vals[i] = types.NewObj(id)
	}
	return types.NewList(vals)
}

func boolInt(b bool) types.Value {
	if b {
		return types.NewInt(1)
	}
	return types.NewInt(0)
}
