package compiler

import (
	"github.com/chazu/narrative/pkg/bytecode"
)

// measureStack walks code once and returns the deepest stack it reaches.
// Every statement leaves the stack as it found it, so a linear walk sees
// the same depths as any execution path. The stack must be empty at every
// ENDL and EOX; anything else is a generator bug.
func measureStack(code []bytecode.Instruction, natives *Natives) (int, error) {
	depth, peak := 0, 0
	for pc, in := range code {
		argc := 0
		if in.Op == bytecode.OpCall {
			n, ok := natives.Arity(uint32(in.Literal))
			if !ok {
				return 0, errorAt(InternalError, Position{}, "CALL of unknown native %#08x at pc %d", uint32(in.Literal), pc)
			}
			argc = n
		}

		info := bytecode.GetOpcodeInfo(in.Op)
		pop := info.StackPop
		if pop < 0 {
			pop = argc
		}
		if depth < pop {
			return 0, errorAt(InternalError, Position{}, "stack underflow at pc %d (%s): depth %d, pops %d", pc, in.Op, depth, pop)
		}
		depth += in.Op.StackDelta(argc)
		if depth > peak {
			peak = depth
		}
		if in.Op.IsBoundary() && depth != 0 {
			return 0, errorAt(InternalError, Position{}, "stack depth %d at %s, pc %d", depth, in.Op, pc)
		}
	}
	if depth != 0 {
		return 0, errorAt(InternalError, Position{}, "stack depth %d at end of code", depth)
	}
	return peak, nil
}
