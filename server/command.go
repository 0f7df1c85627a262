package server

import (
	"strings"

	"etamoo/db"
	"etamoo/types"
)

// ParsedCommand is the structured form of one typed command line.
type ParsedCommand struct {
	Verb    string
	Argstr  string
	Args    []string
	Dobjstr string
	Dobj    types.ObjID
	Prep    db.PrepSpec
	Prepstr string
	Iobjstr string
	Iobj    types.ObjID
}

// Tokenize splits a command line into words, honoring double-quoted
// strings and backslash escapes.
func Tokenize(line string) []string {
	var words []string
	var cur strings.Builder
	inWord := false
	inQuote := false
	flush := func() {
		if inWord {
			words = append(words, cur.String())
			cur.Reset()
			inWord = false
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line):
			i++
			cur.WriteByte(line[i])
			inWord = true
		case c == '"':
			inQuote = !inQuote
			inWord = true
		case (c == ' ' || c == '\t') && !inQuote:
			flush()
		default:
			cur.WriteByte(c)
			inWord = true
		}
	}
	flush()
	return words
}

// ParseCommand splits a line into verb, argument string, and the
// direct-object / preposition / indirect-object triple. Object
// resolution happens later, against the player's surroundings.
func ParseCommand(line string) *ParsedCommand {
	cmd := &ParsedCommand{
		Dobj: types.ObjNothing,
		Prep: db.PrepNone,
		Iobj: types.ObjNothing,
	}

	line = strings.TrimSpace(line)
	// The classic abbreviations: "foo → say foo, :foo → emote foo.
	switch {
	case strings.HasPrefix(line, "\""):
		line = "say " + line[1:]
	case strings.HasPrefix(line, ":"):
		line = "emote " + line[1:]
	case strings.HasPrefix(line, ";"):
		line = "eval " + line[1:]
	}

	words := Tokenize(line)
	if len(words) == 0 {
		return cmd
	}
	cmd.Verb = words[0]

	// argstr is everything after the verb word, leading whitespace
	// stripped but internal spacing preserved.
	verbEnd := strings.IndexAny(line, " \t")
	if verbEnd < 0 {
		cmd.Argstr = ""
	} else {
		cmd.Argstr = strings.TrimLeft(line[verbEnd:], " \t")
	}
	cmd.Args = words[1:]

	prep, start, end, prepstr := db.MatchPreposition(cmd.Args)
	if prep == db.PrepNone {
		cmd.Dobjstr = strings.Join(cmd.Args, " ")
		return cmd
	}
	cmd.Prep = prep
	cmd.Prepstr = prepstr
	cmd.Dobjstr = strings.Join(cmd.Args[:start], " ")
	cmd.Iobjstr = strings.Join(cmd.Args[end:], " ")
	return cmd
}
