package db

import "strings"

// prepositions is the fixed preposition table; the index is the
// PrepSpec value, each entry lists the forms that match it.
var prepositions = [][]string{
	{"with", "using"},
	{"at", "to"},
	{"in front of"},
	{"in", "inside", "into"},
	{"on top of", "on", "onto", "upon"},
	{"out of", "from inside", "from"},
	{"over"},
	{"through"},
	{"under", "underneath", "beneath"},
	{"behind"},
	{"beside"},
	{"for", "about"},
	{"is"},
	{"as"},
	{"off", "off of"},
}

// NumPreps is the size of the preposition table.
var NumPreps = len(prepositions)

// PrepForms returns the alias forms of one table entry.
func PrepForms(spec PrepSpec) []string {
	if spec < 0 || int(spec) >= len(prepositions) {
		return nil
	}
	return prepositions[spec]
}

// PrepName renders a spec the way verb_args reports it: all forms of
// the entry joined by "/", or "none"/"any".
func PrepName(spec PrepSpec) string {
	switch spec {
	case PrepNone:
		return "none"
	case PrepAny:
		return "any"
	}
	if int(spec) < len(prepositions) {
		return strings.Join(prepositions[spec], "/")
	}
	return "none"
}

// ParsePrep resolves a preposition specification string: "none",
// "any", a form ("in front of"), or a full alias list
// ("on top of/on/onto/upon").
func ParsePrep(s string) (PrepSpec, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "none":
		return PrepNone, true
	case "any":
		return PrepAny, true
	}
	for i, forms := range prepositions {
		if s == strings.Join(forms, "/") {
			return PrepSpec(i), true
		}
		for _, f := range forms {
			if s == f {
				return PrepSpec(i), true
			}
		}
	}
	return PrepNone, false
}

// MatchPreposition scans a word list for the earliest preposition form
// (the longest form wins among matches at the same position),
// returning the spec, the index range [start, end) of the matched
// words, and the matched text.
func MatchPreposition(words []string) (PrepSpec, int, int, string) {
	bestSpec := PrepNone
	bestStart, bestEnd := -1, -1
	bestLen := 0
	for specIdx, forms := range prepositions {
		for _, form := range forms {
			formWords := strings.Fields(form)
			for i := 0; i+len(formWords) <= len(words); i++ {
				match := true
				for j, fw := range formWords {
					if !strings.EqualFold(words[i+j], fw) {
						match = false
						break
					}
				}
				if !match {
					continue
				}
				// Prefer the earliest match; among matches at the same
				// spot the longest form wins.
				if bestStart == -1 || i < bestStart || (i == bestStart && len(formWords) > bestLen) {
					bestSpec = PrepSpec(specIdx)
					bestStart = i
					bestEnd = i + len(formWords)
					bestLen = len(formWords)
				}
			}
		}
	}
	if bestStart < 0 {
		return PrepNone, -1, -1, ""
	}
	return bestSpec, bestStart, bestEnd, strings.Join(words[bestStart:bestEnd], " ")
}
