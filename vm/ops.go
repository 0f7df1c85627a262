package vm

import (
	"fmt"
	"math"
	"strings"

	"etamoo/types"
)

// execute dispatches one instruction. A non-nil outcome stops the run
// loop (suspension, budget exhaustion surfaced by callers, abort).
func (vm *VM) execute(op OpCode) *Outcome {
	f := vm.frame()

	switch op {
	case OP_NOP:

	case OP_PUSH:
		k := vm.readU16()
		vm.push(f.Prog.Constants[k])

	case OP_POP:
		vm.pop()

	case OP_DUP:
		vm.push(vm.peek(0))

	case OP_GET_VAR:
		i := vm.readU16()
		v := f.Locals[i]
		if v == nil {
			out, _ := vm.raise(types.E_VARNF,
				fmt.Sprintf("Variable `%s' not found", f.Prog.VarNames[i]), nil)
			return out
		}
		vm.push(v)

	case OP_SET_VAR:
		i := vm.readU16()
		f.Locals[i] = vm.pop()

	case OP_NEG:
		v := vm.pop()
		switch n := v.(type) {
		case types.IntValue:
			vm.push(types.NewInt(-n.Val))
		case types.FloatValue:
			vm.push(types.NewFloat(-n.Val))
		default:
			out, _ := vm.raise(types.E_TYPE, "", nil)
			return out
		}

	case OP_NOT:
		v := vm.pop()
		vm.push(boolInt(!v.Truthy()))

	case OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD, OP_POW:
		r := vm.pop()
		l := vm.pop()
		res := arith(op, l, r)
		if res.IsError() {
			out, _ := vm.raise(res.Error, res.Msg, nil)
			return out
		}
		vm.push(res.Val)

	case OP_EQ:
		r := vm.pop()
		l := vm.pop()
		vm.push(boolInt(l.Equal(r)))

	case OP_NE:
		r := vm.pop()
		l := vm.pop()
		vm.push(boolInt(!l.Equal(r)))

	case OP_LT, OP_LE, OP_GT, OP_GE:
		r := vm.pop()
		l := vm.pop()
		cmp, code := types.Compare(l, r)
		if code != types.E_NONE {
			out, _ := vm.raise(code, "", nil)
			return out
		}
		var b bool
		switch op {
		case OP_LT:
			b = cmp < 0
		case OP_LE:
			b = cmp <= 0
		case OP_GT:
			b = cmp > 0
		case OP_GE:
			b = cmp >= 0
		}
		vm.push(boolInt(b))

	case OP_IN:
		r := vm.pop()
		l := vm.pop()
		list, ok := r.(types.ListValue)
		if !ok {
			out, _ := vm.raise(types.E_TYPE, "", nil)
			return out
		}
		vm.push(types.NewInt(int64(list.Contains(l))))

	case OP_JUMP:
		a := vm.readU16()
		f.IP = a

	case OP_JF:
		a := vm.readU16()
		if !vm.pop().Truthy() {
			f.IP = a
		}

	case OP_JF_ELSE_POP:
		a := vm.readU16()
		if !vm.peek(0).Truthy() {
			f.IP = a
		} else {
			vm.pop()
		}

	case OP_JT_ELSE_POP:
		a := vm.readU16()
		if vm.peek(0).Truthy() {
			f.IP = a
		} else {
			vm.pop()
		}

	case OP_PUSH_CTX:
		f.Ctx = append(f.Ctx, lengthOf(vm.peek(0)))

	case OP_POP_CTX:
		f.Ctx = f.Ctx[:len(f.Ctx)-1]

	case OP_CTX_LENGTH:
		if len(f.Ctx) == 0 {
			out, _ := vm.raise(types.E_INVARG, "Length marker outside an index", nil)
			return out
		}
		n := f.Ctx[len(f.Ctx)-1]
		if n < 0 {
			out, _ := vm.raise(types.E_TYPE, "", nil)
			return out
		}
		vm.push(types.NewInt(n))

	case OP_INDEX:
		idx := vm.pop()
		container := vm.pop()
		f.Ctx = f.Ctx[:len(f.Ctx)-1]
		res := indexValue(container, idx)
		if res.IsError() {
			out, _ := vm.raise(res.Error, res.Msg, nil)
			return out
		}
		vm.push(res.Val)

	case OP_RANGE:
		end := vm.pop()
		start := vm.pop()
		container := vm.pop()
		f.Ctx = f.Ctx[:len(f.Ctx)-1]
		res := rangeValue(container, start, end)
		if res.IsError() {
			out, _ := vm.raise(res.Error, res.Msg, nil)
			return out
		}
		vm.push(res.Val)

	case OP_STORE_INDEX:
		idx := vm.pop()
		container := vm.pop()
		val := vm.pop()
		res := storeIndex(container, idx, val)
		if res.IsError() {
			out, _ := vm.raise(res.Error, res.Msg, nil)
			return out
		}
		vm.push(res.Val)

	case OP_STORE_RANGE:
		end := vm.pop()
		start := vm.pop()
		container := vm.pop()
		val := vm.pop()
		res := storeRange(container, start, end, val)
		if res.IsError() {
			out, _ := vm.raise(res.Error, res.Msg, nil)
			return out
		}
		vm.push(res.Val)

	case OP_MAKE_LIST:
		n := vm.readU16()
		elems := make([]types.Value, n)
		for i := n - 1; i >= 0; i-- {
			elems[i] = vm.pop()
		}
		vm.push(types.NewList(elems))

	case OP_LIST_APPEND:
		v := vm.pop()
		l, ok := vm.pop().(types.ListValue)
		if !ok {
			// A debug-off substitution may have replaced the list under
			// construction with an error value.
			out, _ := vm.raise(types.E_TYPE, "", nil)
			return out
		}
		vm.push(l.Append(v))

	case OP_LIST_EXTEND:
		v := vm.pop()
		l, ok := vm.pop().(types.ListValue)
		if !ok {
			out, _ := vm.raise(types.E_TYPE, "", nil)
			return out
		}
		ext, ok := v.(types.ListValue)
		if !ok {
			out, _ := vm.raise(types.E_TYPE, "Splice of a non-list", nil)
			return out
		}
		for _, e := range ext.Elements() {
			l = l.Append(e)
		}
		vm.push(l)

	case OP_GET_PROP:
		name := vm.pop()
		obj := vm.pop()
		res := vm.getProp(obj, name)
		if res.IsError() {
			out, _ := vm.raise(res.Error, res.Msg, nil)
			return out
		}
		vm.push(res.Val)

	case OP_SET_PROP:
		val := vm.pop()
		name := vm.pop()
		obj := vm.pop()
		res := vm.setProp(obj, name, val)
		if res.IsError() {
			out, _ := vm.raise(res.Error, res.Msg, nil)
			return out
		}
		vm.push(val)

	case OP_STORE_PROP:
		name := vm.pop()
		obj := vm.pop()
		val := vm.pop()
		res := vm.setProp(obj, name, val)
		if res.IsError() {
			out, _ := vm.raise(res.Error, res.Msg, nil)
			return out
		}

	case OP_CALL_BUILTIN:
		k := vm.readU16()
		name := f.Prog.Constants[k].(types.StrValue).Value()
		argsVal, ok := vm.pop().(types.ListValue)
		if !ok {
			out, _ := vm.raise(types.E_TYPE, "", nil)
			return out
		}
		return vm.callBuiltin(name, argsVal)

	case OP_CALL_VERB:
		argsVal := vm.pop()
		nameVal := vm.pop()
		objVal := vm.pop()
		return vm.callVerb(objVal, nameVal, argsVal)

	case OP_PASS:
		argsVal := vm.pop()
		return vm.passVerb(argsVal)

	case OP_RETURN:
		v := vm.pop()
		return vm.performUnwind(&Unwind{Kind: unwindReturn, Val: v})

	case OP_RETURN0:
		return vm.performUnwind(&Unwind{Kind: unwindReturn, Val: types.NewInt(0)})

	case OP_ENTER_LOOP:
		nameK := vm.readU16()
		slots := vm.readU8()
		breakAddr := vm.readU16()
		contAddr := vm.readU16()
		name := ""
		if nameK != noOperand {
			name = f.Prog.Constants[nameK].(types.StrValue).Value()
		}
		f.Loops = append(f.Loops, LoopState{
			Name:         name,
			BaseSP:       vm.SP,
			IterSlots:    slots,
			BreakAddr:    breakAddr,
			ContAddr:     contAddr,
			HandlerDepth: len(f.Handlers),
			CtxDepth:     len(f.Ctx),
		})

	case OP_EXIT_LOOP:
		f.Loops = f.Loops[:len(f.Loops)-1]

	case OP_ITER_PREP:
		if _, ok := vm.peek(0).(types.ListValue); !ok {
			vm.pop()
			return vm.raiseSkippingLoop(types.E_TYPE)
		}
		vm.push(types.NewInt(1))

	case OP_ITER_NEXT:
		vIdx := vm.readU16()
		iIdx := vm.readU16()
		exitAddr := vm.readU16()
		i := vm.peek(0).(types.IntValue).Val
		list := vm.peek(1).(types.ListValue)
		if int(i) > list.Len() {
			vm.pop()
			vm.pop()
			f.IP = exitAddr
			break
		}
		f.Locals[vIdx] = list.Get(int(i))
		if iIdx != noOperand {
			f.Locals[iIdx] = types.NewInt(i)
		}
		vm.Stack[vm.SP-1] = types.NewInt(i + 1)

	case OP_RANGE_NEXT:
		vIdx := vm.readU16()
		exitAddr := vm.readU16()
		cur := vm.peek(0)
		end := vm.peek(1)
		curN, endN, code := rangePair(cur, end)
		if code != types.E_NONE {
			vm.pop()
			vm.pop()
			return vm.raiseSkippingLoop(code)
		}
		if curN > endN {
			vm.pop()
			vm.pop()
			f.IP = exitAddr
			break
		}
		f.Locals[vIdx] = cur
		vm.Stack[vm.SP-1] = bumpRangeValue(cur)

	case OP_BREAK:
		k := vm.readU16()
		label := ""
		if k != noOperand {
			label = f.Prog.Constants[k].(types.StrValue).Value()
		}
		return vm.performUnwind(&Unwind{Kind: unwindBreak, Label: label})

	case OP_CONTINUE:
		k := vm.readU16()
		label := ""
		if k != noOperand {
			label = f.Prog.Constants[k].(types.StrValue).Value()
		}
		return vm.performUnwind(&Unwind{Kind: unwindContinue, Label: label})

	case OP_TRY_EXCEPT:
		n := vm.readU8()
		arms := make([]ExceptArm, n)
		for i := 0; i < n; i++ {
			arms[i].VarIdx = vm.readU16()
			arms[i].Addr = vm.readU16()
		}
		// Code lists were pushed first-clause-first.
		for i := n - 1; i >= 0; i-- {
			codes := vm.pop()
			if _, isInt := codes.(types.IntValue); isInt {
				arms[i].Codes = nil // ANY
			} else {
				arms[i].Codes = codes
			}
		}
		f.Handlers = append(f.Handlers, Handler{
			Kind:      handlerExcept,
			Arms:      arms,
			SP:        vm.SP,
			LoopDepth: len(f.Loops),
			CtxDepth:  len(f.Ctx),
		})

	case OP_END_EXCEPT:
		vm.readU8()
		a := vm.readU16()
		f.Handlers = f.Handlers[:len(f.Handlers)-1]
		f.IP = a

	case OP_TRY_FINALLY:
		a := vm.readU16()
		f.Handlers = append(f.Handlers, Handler{
			Kind:      handlerFinally,
			Addr:      a,
			SP:        vm.SP,
			LoopDepth: len(f.Loops),
			CtxDepth:  len(f.Ctx),
		})

	case OP_FINALLY_NORMAL:
		f.Handlers = f.Handlers[:len(f.Handlers)-1]
		f.Pending = append(f.Pending, &Unwind{Kind: unwindNone})

	case OP_END_FINALLY:
		pending := f.Pending[len(f.Pending)-1]
		f.Pending = f.Pending[:len(f.Pending)-1]
		if pending.Kind != unwindNone {
			return vm.performUnwind(pending)
		}

	case OP_CATCH_PUSH:
		a := vm.readU16()
		codes := vm.pop()
		var codesVal types.Value
		if _, isInt := codes.(types.IntValue); !isInt {
			codesVal = codes
		}
		f.Handlers = append(f.Handlers, Handler{
			Kind:      handlerCatch,
			Codes:     codesVal,
			Addr:      a,
			SP:        vm.SP,
			LoopDepth: len(f.Loops),
			CtxDepth:  len(f.Ctx),
		})

	case OP_CATCH_POP:
		a := vm.readU16()
		// The protected expression's value sits on top; the handler is
		// directly beneath it in the handler stack.
		f.Handlers = f.Handlers[:len(f.Handlers)-1]
		f.IP = a

	case OP_SCATTER:
		return vm.scatter()

	case OP_JUMP_IF_LOCALSET:
		v := vm.readU16()
		a := vm.readU16()
		if f.Locals[v] != nil {
			f.IP = a
		}

	case OP_FORK:
		forkIdx := vm.readU8()
		varIdx := vm.readU16()
		return vm.forkTask(forkIdx, varIdx)

	default:
		out, _ := vm.raise(types.E_INVARG, fmt.Sprintf("Unknown opcode %d", int(op)), nil)
		return out
	}
	return nil
}

// raiseSkippingLoop raises at a loop entry; when the debug flag
// substitutes the error instead, the whole loop is skipped.
func (vm *VM) raiseSkippingLoop(code types.ErrorCode) *Outcome {
	out, substituted := vm.raise(code, "", nil)
	if substituted {
		vm.pop() // substituted error value
		return vm.performUnwind(&Unwind{Kind: unwindBreak})
	}
	return out
}

func boolInt(b bool) types.Value {
	if b {
		return types.NewInt(1)
	}
	return types.NewInt(0)
}

func lengthOf(v types.Value) int64 {
	switch c := v.(type) {
	case types.ListValue:
		return int64(c.Len())
	case types.StrValue:
		return int64(c.Len())
	default:
		return -1
	}
}

func rangePair(cur, end types.Value) (int64, int64, types.ErrorCode) {
	switch c := cur.(type) {
	case types.IntValue:
		if e, ok := end.(types.IntValue); ok {
			return c.Val, e.Val, types.E_NONE
		}
	case types.ObjValue:
		if e, ok := end.(types.ObjValue); ok {
			return int64(c.Val), int64(e.Val), types.E_NONE
		}
	}
	return 0, 0, types.E_TYPE
}

func bumpRangeValue(cur types.Value) types.Value {
	switch c := cur.(type) {
	case types.IntValue:
		return types.NewInt(c.Val + 1)
	case types.ObjValue:
		return types.NewObj(c.Val + 1)
	}
	return cur
}

// arith implements the binary arithmetic operators with the numeric
// typing rules: operands of one numeric kind only, strings concatenate
// with +, float overflow is E_FLOAT and NaN is E_INVARG.
func arith(op OpCode, l, r types.Value) types.Result {
	switch lv := l.(type) {
	case types.IntValue:
		rv, ok := r.(types.IntValue)
		if !ok {
			return types.Err(types.E_TYPE)
		}
		return intArith(op, lv.Val, rv.Val)
	case types.FloatValue:
		rv, ok := r.(types.FloatValue)
		if !ok {
			return types.Err(types.E_TYPE)
		}
		return floatArith(op, lv.Val, rv.Val)
	case types.StrValue:
		if op != OP_ADD {
			return types.Err(types.E_TYPE)
		}
		rv, ok := r.(types.StrValue)
		if !ok {
			return types.Err(types.E_TYPE)
		}
		return types.Ok(types.NewStr(lv.Value() + rv.Value()))
	}
	return types.Err(types.E_TYPE)
}

func intArith(op OpCode, a, b int64) types.Result {
	switch op {
	case OP_ADD:
		return types.Ok(types.NewInt(a + b))
	case OP_SUB:
		return types.Ok(types.NewInt(a - b))
	case OP_MUL:
		return types.Ok(types.NewInt(a * b))
	case OP_DIV:
		if b == 0 {
			return types.Err(types.E_DIV)
		}
		if a == math.MinInt64 && b == -1 {
			return types.Ok(types.NewInt(math.MinInt64))
		}
		return types.Ok(types.NewInt(a / b))
	case OP_MOD:
		if b == 0 {
			return types.Err(types.E_DIV)
		}
		if a == math.MinInt64 && b == -1 {
			return types.Ok(types.NewInt(0))
		}
		return types.Ok(types.NewInt(a % b))
	case OP_POW:
		return intPow(a, b)
	}
	return types.Err(types.E_TYPE)
}

func intPow(base, exp int64) types.Result {
	if exp < 0 {
		switch base {
		case 0:
			return types.Err(types.E_DIV)
		case 1:
			return types.Ok(types.NewInt(1))
		case -1:
			if exp%2 == 0 {
				return types.Ok(types.NewInt(1))
			}
			return types.Ok(types.NewInt(-1))
		default:
			return types.Ok(types.NewInt(0))
		}
	}
	var result int64 = 1
	for e := exp; e > 0; e-- {
		result *= base
	}
	return types.Ok(types.NewInt(result))
}

func floatArith(op OpCode, a, b float64) types.Result {
	var r float64
	switch op {
	case OP_ADD:
		r = a + b
	case OP_SUB:
		r = a - b
	case OP_MUL:
		r = a * b
	case OP_DIV:
		if b == 0 {
			return types.Err(types.E_DIV)
		}
		r = a / b
	case OP_MOD:
		if b == 0 {
			return types.Err(types.E_DIV)
		}
		r = math.Mod(a, b)
	case OP_POW:
		r = math.Pow(a, b)
	default:
		return types.Err(types.E_TYPE)
	}
	return checkFloat(r)
}

func checkFloat(r float64) types.Result {
	if math.IsNaN(r) {
		return types.Err(types.E_INVARG)
	}
	if math.IsInf(r, 0) {
		return types.Err(types.E_FLOAT)
	}
	return types.Ok(types.NewFloat(r))
}

// indexValue implements c[i] for lists and strings, 1-based.
func indexValue(container, idx types.Value) types.Result {
	i, ok := idx.(types.IntValue)
	if !ok {
		return types.Err(types.E_TYPE)
	}
	switch c := container.(type) {
	case types.ListValue:
		if i.Val < 1 || int(i.Val) > c.Len() {
			return types.Err(types.E_RANGE)
		}
		return types.Ok(c.Get(int(i.Val)))
	case types.StrValue:
		runes := c.Runes()
		if i.Val < 1 || int(i.Val) > len(runes) {
			return types.Err(types.E_RANGE)
		}
		return types.Ok(types.NewStr(string(runes[i.Val-1])))
	}
	return types.Err(types.E_TYPE)
}

// rangeValue implements c[a..b]; an inverted range is empty, any other
// out-of-bounds index is E_RANGE.
func rangeValue(container, start, end types.Value) types.Result {
	s, ok1 := start.(types.IntValue)
	e, ok2 := end.(types.IntValue)
	if !ok1 || !ok2 {
		return types.Err(types.E_TYPE)
	}
	switch c := container.(type) {
	case types.ListValue:
		if s.Val > e.Val {
			return types.Ok(types.NewEmptyList())
		}
		if s.Val < 1 || int(e.Val) > c.Len() {
			return types.Err(types.E_RANGE)
		}
		return types.Ok(c.Slice(int(s.Val), int(e.Val)))
	case types.StrValue:
		runes := c.Runes()
		if s.Val > e.Val {
			return types.Ok(types.NewStr(""))
		}
		if s.Val < 1 || int(e.Val) > len(runes) {
			return types.Err(types.E_RANGE)
		}
		return types.Ok(types.NewStr(string(runes[s.Val-1 : e.Val])))
	}
	return types.Err(types.E_TYPE)
}

func storeIndex(container, idx, val types.Value) types.Result {
	i, ok := idx.(types.IntValue)
	if !ok {
		return types.Err(types.E_TYPE)
	}
	switch c := container.(type) {
	case types.ListValue:
		if i.Val < 1 || int(i.Val) > c.Len() {
			return types.Err(types.E_RANGE)
		}
		return types.Ok(c.Set(int(i.Val), val))
	case types.StrValue:
		sv, ok := val.(types.StrValue)
		if !ok {
			return types.Err(types.E_TYPE)
		}
		if sv.Len() != 1 {
			return types.Err(types.E_INVARG)
		}
		runes := c.Runes()
		if i.Val < 1 || int(i.Val) > len(runes) {
			return types.Err(types.E_RANGE)
		}
		out := make([]rune, len(runes))
		copy(out, runes)
		out[i.Val-1] = sv.Runes()[0]
		return types.Ok(types.NewStr(string(out)))
	}
	return types.Err(types.E_TYPE)
}

func storeRange(container, start, end, val types.Value) types.Result {
	s, ok1 := start.(types.IntValue)
	e, ok2 := end.(types.IntValue)
	if !ok1 || !ok2 {
		return types.Err(types.E_TYPE)
	}
	switch c := container.(type) {
	case types.ListValue:
		rep, ok := val.(types.ListValue)
		if !ok {
			return types.Err(types.E_TYPE)
		}
		n := int64(c.Len())
		if s.Val < 1 || e.Val > n || s.Val > e.Val+1 {
			return types.Err(types.E_RANGE)
		}
		out := c.Slice(1, int(s.Val)-1)
		for _, v := range rep.Elements() {
			out = out.Append(v)
		}
		tail := c.Slice(int(e.Val)+1, int(n))
		for _, v := range tail.Elements() {
			out = out.Append(v)
		}
		return types.Ok(out)
	case types.StrValue:
		rep, ok := val.(types.StrValue)
		if !ok {
			return types.Err(types.E_TYPE)
		}
		runes := c.Runes()
		n := int64(len(runes))
		if s.Val < 1 || e.Val > n || s.Val > e.Val+1 {
			return types.Err(types.E_RANGE)
		}
		var b strings.Builder
		b.WriteString(string(runes[:s.Val-1]))
		b.WriteString(rep.Value())
		b.WriteString(string(runes[e.Val:]))
		return types.Ok(types.NewStr(b.String()))
	}
	return types.Err(types.E_TYPE)
}

// scatter distributes a list over the encoded targets, leaving the
// list as the expression value.
func (vm *VM) scatter() *Outcome {
	f := vm.frame()
	n := vm.readU8()
	endAddr := vm.readU16()
	type target struct {
		flag   int
		varIdx int
	}
	targets := make([]target, n)
	nReq, nOpt, haveRest := 0, 0, false
	for i := 0; i < n; i++ {
		targets[i].flag = vm.readU8()
		targets[i].varIdx = vm.readU16()
		switch targets[i].flag {
		case 0:
			nReq++
		case 1:
			nOpt++
		case 2:
			haveRest = true
		}
	}

	fail := func(code types.ErrorCode) *Outcome {
		vm.pop()
		out, substituted := vm.raise(code, "", nil)
		if substituted {
			f.IP = endAddr
		}
		return out
	}

	list, ok := vm.peek(0).(types.ListValue)
	if !ok {
		return fail(types.E_TYPE)
	}
	length := list.Len()
	if length < nReq || (!haveRest && length > nReq+nOpt) {
		return fail(types.E_ARGS)
	}

	extras := length - nReq
	if haveRest && extras > nOpt {
		extras = nOpt
	} else if !haveRest {
		extras = length - nReq
	}
	restLen := length - nReq - extras

	pos := 1
	for _, t := range targets {
		switch t.flag {
		case 0:
			f.Locals[t.varIdx] = list.Get(pos)
			pos++
		case 1:
			if extras > 0 {
				f.Locals[t.varIdx] = list.Get(pos)
				pos++
				extras--
			} else {
				f.Locals[t.varIdx] = nil
			}
		case 2:
			rest := list.Slice(pos, pos+restLen-1)
			f.Locals[t.varIdx] = rest
			pos += restLen
		}
	}
	return nil
}
