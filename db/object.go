package db

import (
	"strings"

	"etamoo/parser"
	"etamoo/types"
)

// Object is one entry in the object database. All cross-object
// references are ObjIDs, never Go pointers, so the graph stays trivially
// serializable and renumber can rewrite references in place.
type Object struct {
	ID       types.ObjID
	Name     string
	Owner    types.ObjID
	Parent   types.ObjID
	Children []types.ObjID
	Location types.ObjID
	Contents []types.ObjID
	Flags    ObjectFlags

	// Properties keyed by case-folded name; PropOrder preserves
	// definition order for properties().
	Properties map[string]*Property
	PropOrder  []string

	// Verbs in definition order; lookup scans the slice so earlier
	// verbs shadow later ones, as verb programmers expect.
	Verbs []*Verb

	Recycled bool
}

// NewObject creates a bare object with no parent and empty containers.
func NewObject(id, owner types.ObjID) *Object {
	return &Object{
		ID:         id,
		Owner:      owner,
		Parent:     types.ObjNothing,
		Location:   types.ObjNothing,
		Properties: make(map[string]*Property),
	}
}

// Property is a named value slot. An entry with Defined set is the
// definition; an entry without it is a child's local value for an
// inherited property. Clear entries defer to the parent chain.
type Property struct {
	Name    string
	Value   types.Value
	Owner   types.ObjID
	Perms   PropPerms
	Clear   bool
	Defined bool
}

// Verb is a named program attached to an object.
type Verb struct {
	Names []string // aliases, possibly with * wildcards
	Owner types.ObjID
	Perms VerbPerms
	Args  VerbArgs

	Code    []string      // source lines
	Program []parser.Stmt // parsed body, nil until programmed

	// Compiled holds the bytecode form (*vm.Program), populated on
	// first call. Typed as any to keep db free of a vm import.
	Compiled any
}

// NamesString returns the space-joined alias list verb_info reports.
func (v *Verb) NamesString() string {
	return strings.Join(v.Names, " ")
}

// MatchesName reports whether word matches any alias, honoring the *
// wildcard rule: "f*oo" matches "f", "fo", "foo"; a trailing "*"
// matches any continuation; a lone "*" matches everything.
func (v *Verb) MatchesName(word string) bool {
	for _, alias := range v.Names {
		if VerbNameMatch(alias, word) {
			return true
		}
	}
	return false
}

// VerbNameMatch implements the alias wildcard rule for one alias.
func VerbNameMatch(alias, word string) bool {
	alias = strings.ToLower(alias)
	word = strings.ToLower(word)
	star := strings.IndexByte(alias, '*')
	if star < 0 {
		return alias == word
	}
	prefix := alias[:star]
	rest := alias[star+1:]
	if rest == "" {
		// "foo*": word must start with the prefix (or equal it).
		return strings.HasPrefix(word, prefix)
	}
	// "fo*obar": word must start with prefix and the remainder must be
	// a prefix of rest.
	if !strings.HasPrefix(word, prefix) {
		return false
	}
	return strings.HasPrefix(rest, word[len(prefix):])
}

// ObjectFlags are the per-object permission bits.
type ObjectFlags uint32

const (
	FlagPlayer     ObjectFlags = 1 << 0
	FlagProgrammer ObjectFlags = 1 << 1
	FlagWizard     ObjectFlags = 1 << 2
	FlagRead       ObjectFlags = 1 << 4
	FlagWrite      ObjectFlags = 1 << 5
	FlagFertile    ObjectFlags = 1 << 7
)

// Has checks a flag.
func (f ObjectFlags) Has(flag ObjectFlags) bool { return f&flag != 0 }

// Set sets a flag.
func (f ObjectFlags) Set(flag ObjectFlags) ObjectFlags { return f | flag }

// Clear clears a flag.
func (f ObjectFlags) Clear(flag ObjectFlags) ObjectFlags { return f &^ flag }

// IsWizard reports the wizard bit.
func (o *Object) IsWizard() bool { return o.Flags.Has(FlagWizard) }

// IsProgrammer reports the programmer bit; a wizard is implicitly a
// programmer.
func (o *Object) IsProgrammer() bool {
	return o.Flags.Has(FlagProgrammer) || o.Flags.Has(FlagWizard)
}

// PropPerms are property permission bits.
type PropPerms uint8

const (
	PropRead  PropPerms = 1 << 0
	PropWrite PropPerms = 1 << 1
	PropChown PropPerms = 1 << 2
)

// Has checks a permission bit.
func (p PropPerms) Has(perm PropPerms) bool { return p&perm != 0 }

// String renders "r", "w", "c" in the conventional order.
func (p PropPerms) String() string {
	s := ""
	if p.Has(PropRead) {
		s += "r"
	}
	if p.Has(PropWrite) {
		s += "w"
	}
	if p.Has(PropChown) {
		s += "c"
	}
	return s
}

// ParsePropPerms parses a perms string; unknown letters are E_INVARG at
// the builtin layer, reported here with ok=false.
func ParsePropPerms(s string) (PropPerms, bool) {
	var p PropPerms
	for _, c := range strings.ToLower(s) {
		switch c {
		case 'r':
			p |= PropRead
		case 'w':
			p |= PropWrite
		case 'c':
			p |= PropChown
		default:
			return 0, false
		}
	}
	return p, true
}

// VerbPerms are verb permission bits.
type VerbPerms uint8

const (
	VerbRead    VerbPerms = 1 << 0
	VerbWrite   VerbPerms = 1 << 1
	VerbExecute VerbPerms = 1 << 2
	VerbDebug   VerbPerms = 1 << 3
)

// Has checks a permission bit.
func (p VerbPerms) Has(perm VerbPerms) bool { return p&perm != 0 }

// String renders "rwxd" in the conventional order.
func (p VerbPerms) String() string {
	s := ""
	if p.Has(VerbRead) {
		s += "r"
	}
	if p.Has(VerbWrite) {
		s += "w"
	}
	if p.Has(VerbExecute) {
		s += "x"
	}
	if p.Has(VerbDebug) {
		s += "d"
	}
	return s
}

// ParseVerbPerms parses a perms string.
func ParseVerbPerms(s string) (VerbPerms, bool) {
	var p VerbPerms
	for _, c := range strings.ToLower(s) {
		switch c {
		case 'r':
			p |= VerbRead
		case 'w':
			p |= VerbWrite
		case 'x':
			p |= VerbExecute
		case 'd':
			p |= VerbDebug
		default:
			return 0, false
		}
	}
	return p, true
}

// ArgSpec is a direct- or indirect-object pattern of a command verb.
type ArgSpec int

const (
	ArgNone ArgSpec = 0
	ArgAny  ArgSpec = 1
	ArgThis ArgSpec = 2
)

// String renders the spec the way verb_args reports it.
func (a ArgSpec) String() string {
	switch a {
	case ArgAny:
		return "any"
	case ArgThis:
		return "this"
	default:
		return "none"
	}
}

// ParseArgSpec parses "none"/"any"/"this".
func ParseArgSpec(s string) (ArgSpec, bool) {
	switch strings.ToLower(s) {
	case "none":
		return ArgNone, true
	case "any":
		return ArgAny, true
	case "this":
		return ArgThis, true
	}
	return 0, false
}

// PrepSpec identifies a preposition pattern: a specific entry in the
// preposition table, none, or any.
type PrepSpec int

const (
	PrepNone PrepSpec = -1
	PrepAny  PrepSpec = -2
)

// VerbArgs is the full argument specification of a verb.
type VerbArgs struct {
	Dobj ArgSpec
	Prep PrepSpec
	Iobj ArgSpec
}

// Matches reports whether a parsed command's shape satisfies the spec.
// thisObj is the object the verb search is currently visiting.
func (va VerbArgs) Matches(dobj types.ObjID, prep PrepSpec, iobj types.ObjID, thisObj types.ObjID) bool {
	if !argMatches(va.Dobj, dobj, thisObj) {
		return false
	}
	if !argMatches(va.Iobj, iobj, thisObj) {
		return false
	}
	switch va.Prep {
	case PrepAny:
		return true
	case PrepNone:
		return prep == PrepNone
	default:
		return va.Prep == prep
	}
}

func argMatches(spec ArgSpec, obj types.ObjID, thisObj types.ObjID) bool {
	switch spec {
	case ArgNone:
		return obj == types.ObjNothing
	case ArgThis:
		return obj == thisObj
	default:
		return true
	}
}
