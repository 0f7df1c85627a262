package db

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"etamoo/types"
)

// Store is the shared object database. MOO tasks run one at a time, so
// their composite mutations are serialized by construction; the RWMutex
// protects readers on host threads (connections, the checkpointer).
type Store struct {
	mu       sync.RWMutex
	objects  map[types.ObjID]*Object
	maxObjID types.ObjID
}

// NewStore creates an empty database.
func NewStore() *Store {
	return &Store{
		objects:  make(map[types.ObjID]*Object),
		maxObjID: -1,
	}
}

// Get retrieves a live object, or nil.
func (s *Store) Get(id types.ObjID) *Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return nil
	}
	return obj
}

// Modify runs an atomic read-modify-write step against one object.
func (s *Store) Modify(id types.ObjID, f func(*Object) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return fmt.Errorf("object #%d does not exist", id)
	}
	return f(obj)
}

// Add inserts an object, bumping the max-object counter.
func (s *Store) Add(obj *Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.objects[obj.ID]; ok && !existing.Recycled {
		return fmt.Errorf("object #%d already exists", obj.ID)
	}
	s.objects[obj.ID] = obj
	if obj.ID > s.maxObjID {
		s.maxObjID = obj.ID
	}
	return nil
}

// Valid reports whether id names a live object.
func (s *Store) Valid(id types.ObjID) bool {
	if id < 0 {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[id]
	return ok && !obj.Recycled
}

// MaxObject returns the high-water object number, counting recycled
// slots.
func (s *Store) MaxObject() types.ObjID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxObjID
}

// ResetMaxObject lowers the counter to the highest live object number.
func (s *Store) ResetMaxObject() {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := types.ObjID(-1)
	for id, obj := range s.objects {
		if !obj.Recycled && id > max {
			max = id
		}
	}
	s.maxObjID = max
}

// Players returns the object numbers holding the player flag, sorted.
func (s *Store) Players() []types.ObjID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.ObjID
	for _, obj := range s.objects {
		if !obj.Recycled && obj.Flags.Has(FlagPlayer) {
			out = append(out, obj.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// All returns every live object, sorted by number.
func (s *Store) All() []*Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Object, 0, len(s.objects))
	for _, obj := range s.objects {
		if !obj.Recycled {
			out = append(out, obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Create allocates the next object number and links it under parent.
// parent may be ObjNothing. The fertile/ownership checks live in the
// create() builtin; this is the raw operation.
func (s *Store) Create(parent, owner types.ObjID) (*Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if parent >= 0 {
		p, ok := s.objects[parent]
		if !ok || p.Recycled {
			return nil, fmt.Errorf("parent #%d does not exist", parent)
		}
	}
	id := s.maxObjID + 1
	obj := NewObject(id, owner)
	obj.Parent = parent
	s.objects[id] = obj
	s.maxObjID = id
	if parent >= 0 {
		p := s.objects[parent]
		p.Children = append(p.Children, id)
	}
	return obj, nil
}

// Recycle destroys an object: contents are expelled to nothing,
// children are reparented to the object's parent, and the slot is
// marked dead. The caller runs the MOO-level hooks first.
func (s *Store) Recycle(id types.ObjID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return fmt.Errorf("object #%d does not exist", id)
	}

	for _, c := range obj.Contents {
		if inner, ok := s.objects[c]; ok {
			inner.Location = types.ObjNothing
		}
	}
	obj.Contents = nil

	// Reparent children to the recycled object's parent.
	for _, c := range obj.Children {
		child, ok := s.objects[c]
		if !ok {
			continue
		}
		child.Parent = obj.Parent
		if obj.Parent >= 0 {
			gp := s.objects[obj.Parent]
			gp.Children = append(gp.Children, c)
		}
	}
	obj.Children = nil

	if obj.Parent >= 0 {
		if p, ok := s.objects[obj.Parent]; ok {
			p.Children = removeID(p.Children, id)
		}
	}
	if obj.Location >= 0 {
		if loc, ok := s.objects[obj.Location]; ok {
			loc.Contents = removeID(loc.Contents, id)
		}
	}

	obj.Recycled = true
	obj.Properties = make(map[string]*Property)
	obj.PropOrder = nil
	obj.Verbs = nil
	return nil
}

// ChParent changes an object's parent. Fails when the change would
// make the parent chain cyclic.
func (s *Store) ChParent(id, newParent types.ObjID) types.ErrorCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return types.E_INVARG
	}
	if newParent >= 0 {
		np, ok := s.objects[newParent]
		if !ok || np.Recycled {
			return types.E_INVARG
		}
		// Walk up from the proposed parent; finding the object means a
		// cycle (chparent(o, o) included).
		for cur := newParent; cur >= 0; {
			if cur == id {
				return types.E_RECMOVE
			}
			next, ok := s.objects[cur]
			if !ok {
				break
			}
			cur = next.Parent
		}
	}
	if obj.Parent >= 0 {
		if old, ok := s.objects[obj.Parent]; ok {
			old.Children = removeID(old.Children, id)
		}
	}
	obj.Parent = newParent
	if newParent >= 0 {
		np := s.objects[newParent]
		np.Children = append(np.Children, id)
	}
	// Local values for properties no longer defined anywhere up the
	// chain are dropped.
	s.pruneOrphanedProps(obj)
	return types.E_NONE
}

// pruneOrphanedProps removes non-defined property entries whose
// definition is no longer reachable via the parent chain.
// Caller holds the lock.
func (s *Store) pruneOrphanedProps(obj *Object) {
	for key, prop := range obj.Properties {
		if prop.Defined {
			continue
		}
		found := false
		for cur := obj.Parent; cur >= 0; {
			p, ok := s.objects[cur]
			if !ok || p.Recycled {
				break
			}
			if def, ok := p.Properties[key]; ok && def.Defined {
				found = true
				break
			}
			cur = p.Parent
		}
		if !found {
			delete(obj.Properties, key)
			obj.PropOrder = removeName(obj.PropOrder, key)
		}
	}
}

// MoveRaw relocates an object without firing hooks. where may be
// ObjNothing. Fails E_RECMOVE when where is inside what.
func (s *Store) MoveRaw(what, where types.ObjID) types.ErrorCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[what]
	if !ok || obj.Recycled {
		return types.E_INVARG
	}
	if where >= 0 {
		dest, ok := s.objects[where]
		if !ok || dest.Recycled {
			return types.E_INVARG
		}
		for cur := where; cur >= 0; {
			if cur == what {
				return types.E_RECMOVE
			}
			c, ok := s.objects[cur]
			if !ok {
				break
			}
			cur = c.Location
		}
		_ = dest
	}
	if obj.Location >= 0 {
		if old, ok := s.objects[obj.Location]; ok {
			old.Contents = removeID(old.Contents, what)
		}
	}
	obj.Location = where
	if where >= 0 {
		dest := s.objects[where]
		dest.Contents = append(dest.Contents, what)
	}
	return types.E_NONE
}

// Renumber moves an object to the lowest unused number, rewriting every
// reference database-wide, and returns the new number.
func (s *Store) Renumber(id types.ObjID) (types.ObjID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[id]
	if !ok || obj.Recycled {
		return 0, fmt.Errorf("object #%d does not exist", id)
	}
	var newID types.ObjID
	for newID = 0; newID < id; newID++ {
		if o, used := s.objects[newID]; !used || o.Recycled {
			break
		}
	}
	if newID >= id {
		return id, nil
	}

	delete(s.objects, id)
	obj.ID = newID
	s.objects[newID] = obj

	for _, other := range s.objects {
		if other.Parent == id {
			other.Parent = newID
		}
		if other.Location == id {
			other.Location = newID
		}
		if other.Owner == id {
			other.Owner = newID
		}
		replaceID(other.Children, id, newID)
		replaceID(other.Contents, id, newID)
		for _, prop := range other.Properties {
			if prop.Owner == id {
				prop.Owner = newID
			}
		}
		for _, verb := range other.Verbs {
			if verb.Owner == id {
				verb.Owner = newID
			}
		}
	}
	return newID, nil
}

// ParentChain returns the chain from id (inclusive) to the root.
func (s *Store) ParentChain(id types.ObjID) []types.ObjID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var chain []types.ObjID
	seen := make(map[types.ObjID]bool)
	for cur := id; cur >= 0 && !seen[cur]; {
		seen[cur] = true
		obj, ok := s.objects[cur]
		if !ok || obj.Recycled {
			break
		}
		chain = append(chain, cur)
		cur = obj.Parent
	}
	return chain
}

// IsWizard reports the wizard flag of a live object.
func (s *Store) IsWizard(id types.ObjID) bool {
	obj := s.Get(id)
	return obj != nil && obj.IsWizard()
}

func removeID(ids []types.ObjID, id types.ObjID) []types.ObjID {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func replaceID(ids []types.ObjID, old, new types.ObjID) {
	for i, x := range ids {
		if x == old {
			ids[i] = new
		}
	}
}

func removeName(names []string, name string) []string {
	out := names[:0]
	for _, x := range names {
		if !strings.EqualFold(x, name) {
			out = append(out, x)
		}
	}
	return out
}
