package builtins

import (
	"strings"
	"sync"

	"github.com/dlclark/regexp2"

	"etamoo/types"
)

// The regex collaborator: PCRE-compatible matching behind one global
// lock, with a compiled-pattern cache. The lock mirrors the contract
// of the legacy binding, which is not reentrant.
var (
	regexMu    sync.Mutex
	regexCache = make(map[string]*regexp2.Regexp)
	regexHits  int64
	regexMiss  int64
)

// RegexCacheStats reports {hits, misses, entries} for the stats
// surface.
func RegexCacheStats() (hits, misses, entries int64) {
	regexMu.Lock()
	defer regexMu.Unlock()
	return regexHits, regexMiss, int64(len(regexCache))
}

func compilePattern(pattern string, caseMatters bool) (*regexp2.Regexp, error) {
	key := pattern
	if !caseMatters {
		key = "(?i)" + pattern
	}
	if re, ok := regexCache[key]; ok {
		regexHits++
		return re, nil
	}
	regexMiss++
	opts := regexp2.None
	if !caseMatters {
		opts |= regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, err
	}
	regexCache[key] = re
	return re, nil
}

func registerRegex(r *Registry) {
	r.Register("match", sig(2, 3, types.TYPE_STR, types.TYPE_STR, types.TYPE_ANY), bfMatch)
	r.Register("rmatch", sig(2, 3, types.TYPE_STR, types.TYPE_STR, types.TYPE_ANY), bfRmatch)
	r.Register("substitute", sig(2, 2, types.TYPE_STR, types.TYPE_LIST), bfSubstitute)
}

// matchResult renders {start, end, {nine {s, e} pairs}, subject};
// unmatched groups report {0, -1}.
func matchResult(m *regexp2.Match, subject string) types.Value {
	groups := m.Groups()
	subs := make([]types.Value, 9)
	for i := 1; i <= 9; i++ {
		s, e := int64(0), int64(-1)
		if i < len(groups) && len(groups[i].Captures) > 0 {
			cap := groups[i].Captures[0]
			s = int64(cap.Index + 1)
			e = int64(cap.Index + cap.Length)
		}
		subs[i-1] = types.NewList([]types.Value{types.NewInt(s), types.NewInt(e)})
	}
	return types.NewList([]types.Value{
		types.NewInt(int64(m.Index + 1)),
		types.NewInt(int64(m.Index + m.Length)),
		types.NewList(subs),
		types.NewStr(subject),
	})
}

func runMatch(args []types.Value, last bool) types.Result {
	subject := args[0].(types.StrValue).Value()
	pattern := args[1].(types.StrValue).Value()
	caseMatters := len(args) > 2 && args[2].Truthy()

	regexMu.Lock()
	defer regexMu.Unlock()
	re, err := compilePattern(pattern, caseMatters)
	if err != nil {
		return types.Err(types.E_INVARG)
	}
	m, err := re.FindStringMatch(subject)
	if err != nil || m == nil {
		return types.Ok(types.NewEmptyList())
	}
	if last {
		for {
			next, err := re.FindNextMatch(m)
			if err != nil || next == nil {
				break
			}
			m = next
		}
	}
	return types.Ok(matchResult(m, subject))
}

func bfMatch(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	return runMatch(args, false)
}

func bfRmatch(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	return runMatch(args, true)
}

// bfSubstitute fills a template from a prior match result: %0 is the
// whole match, %1..%9 the groups, %% a literal percent.
func bfSubstitute(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	template := args[0].(types.StrValue).Value()
	m := args[1].(types.ListValue)
	if m.Len() != 4 {
		return types.Err(types.E_INVARG)
	}
	start, ok1 := m.Get(1).(types.IntValue)
	end, ok2 := m.Get(2).(types.IntValue)
	groups, ok3 := m.Get(3).(types.ListValue)
	subject, ok4 := m.Get(4).(types.StrValue)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return types.Err(types.E_INVARG)
	}
	runes := subject.Runes()

	slice := func(s, e int64) (string, bool) {
		if s < 1 || e > int64(len(runes)) {
			return "", false
		}
		if s > e {
			return "", true
		}
		return string(runes[s-1 : e]), true
	}

	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(template) {
			return types.Err(types.E_INVARG)
		}
		d := template[i]
		switch {
		case d == '%':
			b.WriteByte('%')
		case d == '0':
			part, ok := slice(start.Val, end.Val)
			if !ok {
				return types.Err(types.E_INVARG)
			}
			b.WriteString(part)
		case d >= '1' && d <= '9':
			gi := int(d - '0')
			if gi > groups.Len() {
				return types.Err(types.E_INVARG)
			}
			pair, ok := groups.Get(gi).(types.ListValue)
			if !ok || pair.Len() != 2 {
				return types.Err(types.E_INVARG)
			}
			gs, ok1 := pair.Get(1).(types.IntValue)
			ge, ok2 := pair.Get(2).(types.IntValue)
			if !ok1 || !ok2 {
				return types.Err(types.E_INVARG)
			}
			if ge.Val < gs.Val {
				break // unmatched group substitutes nothing
			}
			part, ok := slice(gs.Val, ge.Val)
			if !ok {
				return types.Err(types.E_INVARG)
			}
			b.WriteString(part)
		default:
			return types.Err(types.E_INVARG)
		}
	}
	return types.Ok(types.NewStr(b.String()))
}
