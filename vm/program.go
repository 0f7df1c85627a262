package vm

import (
	"fmt"
	"strings"

	"etamoo/types"
)

// Program is a compiled verb body. Fork bodies compile to child
// programs sharing the parent's variable table, so a forked task's
// locals snapshot lines up index for index.
type Program struct {
	Code      []byte
	Lines     []int // source line per code byte, for tracebacks
	Constants []types.Value
	VarNames  []string // local index -> name
	NumVars   int
	Forks     []*Program
}

const noOperand = 0xFFFF

// Builtin variables present in every verb frame, in fixed slots.
// Slot 0..n of the variable table are always these.
var builtinVarNames = []string{
	"player", "this", "caller", "verb",
	"args", "argstr",
	"dobj", "dobjstr", "prepstr", "iobj", "iobjstr",
	"INT", "NUM", "FLOAT", "OBJ", "STR", "ERR", "LIST",
}

// Disassemble renders the code for disassemble().
func (p *Program) Disassemble() []string {
	var out []string
	ip := 0
	for ip < len(p.Code) {
		op := OpCode(p.Code[ip])
		start := ip
		ip++
		var args []string
		readU8 := func() int {
			v := int(p.Code[ip])
			ip++
			return v
		}
		readU16 := func() int {
			v := int(p.Code[ip])<<8 | int(p.Code[ip+1])
			ip += 2
			return v
		}
		switch op {
		case OP_PUSH, OP_CALL_BUILTIN:
			k := readU16()
			args = append(args, fmt.Sprintf("%d (%s)", k, p.Constants[k].String()))
		case OP_GET_VAR, OP_SET_VAR:
			v := readU16()
			args = append(args, fmt.Sprintf("%d (%s)", v, p.VarNames[v]))
		case OP_JUMP, OP_JF, OP_JF_ELSE_POP, OP_JT_ELSE_POP,
			OP_TRY_FINALLY, OP_CATCH_PUSH, OP_CATCH_POP:
			args = append(args, fmt.Sprintf("-> %d", readU16()))
		case OP_ENTER_LOOP:
			args = append(args, fmt.Sprintf("name=%d", readU16()),
				fmt.Sprintf("slots=%d", readU8()),
				fmt.Sprintf("break=%d", readU16()),
				fmt.Sprintf("cont=%d", readU16()))
		case OP_ITER_NEXT:
			args = append(args, fmt.Sprintf("v=%d", readU16()),
				fmt.Sprintf("iv=%d", readU16()),
				fmt.Sprintf("-> %d", readU16()))
		case OP_RANGE_NEXT:
			args = append(args, fmt.Sprintf("v=%d", readU16()),
				fmt.Sprintf("-> %d", readU16()))
		case OP_BREAK, OP_CONTINUE:
			args = append(args, fmt.Sprintf("label=%d", readU16()))
		case OP_MAKE_LIST:
			args = append(args, fmt.Sprintf("n=%d", readU16()))
		case OP_TRY_EXCEPT:
			n := readU8()
			args = append(args, fmt.Sprintf("clauses=%d", n))
			for i := 0; i < n; i++ {
				args = append(args, fmt.Sprintf("(v=%d -> %d)", readU16(), readU16()))
			}
		case OP_END_EXCEPT:
			args = append(args, fmt.Sprintf("n=%d", readU8()), fmt.Sprintf("-> %d", readU16()))
		case OP_SCATTER:
			n := readU8()
			args = append(args, fmt.Sprintf("targets=%d", n), fmt.Sprintf("end=%d", readU16()))
			for i := 0; i < n; i++ {
				args = append(args, fmt.Sprintf("(f=%d v=%d)", readU8(), readU16()))
			}
		case OP_JUMP_IF_LOCALSET:
			args = append(args, fmt.Sprintf("v=%d", readU16()), fmt.Sprintf("-> %d", readU16()))
		case OP_FORK:
			args = append(args, fmt.Sprintf("fork=%d", readU8()), fmt.Sprintf("v=%d", readU16()))
		}
		out = append(out, fmt.Sprintf("%4d: %-14s %s", start, op.String(), strings.Join(args, " ")))
	}
	return out
}
