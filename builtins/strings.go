package builtins

import (
	"fmt"
	"strings"
	"unicode"

	"etamoo/types"
)

func registerStrings(r *Registry) {
	r.Register("length", sig(1, 1), bfLength)
	r.Register("strsub", sig(3, 4, types.TYPE_STR, types.TYPE_STR, types.TYPE_STR, types.TYPE_ANY), bfStrsub)
	r.Register("index", sig(2, 3, types.TYPE_STR, types.TYPE_STR, types.TYPE_ANY), bfIndex)
	r.Register("rindex", sig(2, 3, types.TYPE_STR, types.TYPE_STR, types.TYPE_ANY), bfRindex)
	r.Register("strcmp", sig(2, 2, types.TYPE_STR, types.TYPE_STR), bfStrcmp)
	r.Register("decode_binary", sig(1, 2, types.TYPE_STR, types.TYPE_ANY), bfDecodeBinary)
	r.Register("encode_binary", sig(0, -1), bfEncodeBinary)
	r.Register("string_hash", sig(1, 1, types.TYPE_STR), bfStringHash)
	r.Register("binary_hash", sig(1, 1, types.TYPE_STR), bfBinaryHash)
}

func bfLength(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	switch v := args[0].(type) {
	case types.StrValue:
		return types.Ok(types.NewInt(int64(v.Len())))
	case types.ListValue:
		return types.Ok(types.NewInt(int64(v.Len())))
	}
	return types.Err(types.E_TYPE)
}

func bfStrsub(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	subject := args[0].(types.StrValue).Value()
	what := args[1].(types.StrValue).Value()
	with := args[2].(types.StrValue).Value()
	caseMatters := len(args) > 3 && args[3].Truthy()
	if what == "" {
		return types.Err(types.E_INVARG)
	}
	if caseMatters {
		return types.Ok(types.NewStr(strings.ReplaceAll(subject, what, with)))
	}
	var b strings.Builder
	lowSubject := strings.ToLower(subject)
	lowWhat := strings.ToLower(what)
	for i := 0; i < len(subject); {
		j := strings.Index(lowSubject[i:], lowWhat)
		if j < 0 {
			b.WriteString(subject[i:])
			break
		}
		b.WriteString(subject[i : i+j])
		b.WriteString(with)
		i += j + len(what)
	}
	return types.Ok(types.NewStr(b.String()))
}

func strIndex(subject, what string, caseMatters bool, last bool) int {
	if !caseMatters {
		subject = strings.ToLower(subject)
		what = strings.ToLower(what)
	}
	var byteIdx int
	if last {
		byteIdx = strings.LastIndex(subject, what)
	} else {
		byteIdx = strings.Index(subject, what)
	}
	if byteIdx < 0 {
		return 0
	}
	// Convert the byte offset to a 1-based code point index.
	return len([]rune(subject[:byteIdx])) + 1
}

func bfIndex(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	caseMatters := len(args) > 2 && args[2].Truthy()
	n := strIndex(args[0].(types.StrValue).Value(), args[1].(types.StrValue).Value(), caseMatters, false)
	return types.Ok(types.NewInt(int64(n)))
}

func bfRindex(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	caseMatters := len(args) > 2 && args[2].Truthy()
	n := strIndex(args[0].(types.StrValue).Value(), args[1].(types.StrValue).Value(), caseMatters, true)
	return types.Ok(types.NewInt(int64(n)))
}

func bfStrcmp(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	a := args[0].(types.StrValue).Value()
	b := args[1].(types.StrValue).Value()
	return types.Ok(types.NewInt(int64(strings.Compare(a, b))))
}

// decode_binary unpacks the ~HH binary-string form. A lone or
// ill-formed escape is E_INVARG. By default printable runs come back
// as strings and other bytes as integers; with the second argument
// true every byte is an integer.
func bfDecodeBinary(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	s := args[0].(types.StrValue).Value()
	fully := len(args) > 1 && args[1].Truthy()

	var bytes []byte
	for i := 0; i < len(s); {
		c := s[i]
		if c != '~' {
			bytes = append(bytes, c)
			i++
			continue
		}
		if i+2 >= len(s) {
			return types.Err(types.E_INVARG)
		}
		hi, ok1 := hexVal(s[i+1])
		lo, ok2 := hexVal(s[i+2])
		if !ok1 || !ok2 {
			return types.Err(types.E_INVARG)
		}
		bytes = append(bytes, byte(hi<<4|lo))
		i += 3
	}

	var out []types.Value
	if fully {
		for _, b := range bytes {
			out = append(out, types.NewInt(int64(b)))
		}
		return types.Ok(types.NewList(out))
	}
	var run []byte
	flush := func() {
		if len(run) > 0 {
			out = append(out, types.NewStr(string(run)))
			run = nil
		}
	}
	for _, b := range bytes {
		if b == '\t' || (b >= 32 && b < 127) {
			run = append(run, b)
		} else {
			flush()
			out = append(out, types.NewInt(int64(b)))
		}
	}
	flush()
	return types.Ok(types.NewList(out))
}

// encode_binary packs strings and byte-valued integers into the ~HH
// form, escaping ~ itself and every non-printable byte.
func bfEncodeBinary(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	var b strings.Builder
	var encode func(v types.Value) bool
	encode = func(v types.Value) bool {
		switch val := v.(type) {
		case types.StrValue:
			for i := 0; i < len(val.Value()); i++ {
				writeBinaryByte(&b, val.Value()[i])
			}
			return true
		case types.IntValue:
			if val.Val < 0 || val.Val > 255 {
				return false
			}
			writeBinaryByte(&b, byte(val.Val))
			return true
		case types.ListValue:
			for _, e := range val.Elements() {
				if !encode(e) {
					return false
				}
			}
			return true
		}
		return false
	}
	for _, a := range args {
		if !encode(a) {
			return types.Err(types.E_INVARG)
		}
	}
	return types.Ok(types.NewStr(b.String()))
}

func writeBinaryByte(b *strings.Builder, c byte) {
	if c == '~' || c < 32 || c > 126 {
		fmt.Fprintf(b, "~%02X", c)
		return
	}
	b.WriteByte(c)
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

func bfStringHash(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	return types.Ok(types.NewStr(types.HashString(args[0].(types.StrValue).Value())))
}

// binary_hash hashes the decoded bytes of a binary string.
func bfBinaryHash(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	s := args[0].(types.StrValue).Value()
	var bytes []byte
	for i := 0; i < len(s); {
		if s[i] != '~' {
			bytes = append(bytes, s[i])
			i++
			continue
		}
		if i+2 >= len(s) {
			return types.Err(types.E_INVARG)
		}
		hi, ok1 := hexVal(s[i+1])
		lo, ok2 := hexVal(s[i+2])
		if !ok1 || !ok2 {
			return types.Err(types.E_INVARG)
		}
		bytes = append(bytes, byte(hi<<4|lo))
		i += 3
	}
	return types.Ok(types.NewStr(types.HashString(string(bytes))))
}

// isPrintable mirrors the byte class decode_binary returns as string
// text: tab and the printable ASCII range.
func isPrintable(r rune) bool {
	return r == '\t' || (unicode.IsPrint(r) && r < 127)
}
