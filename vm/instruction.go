package vm

import (
	"context"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode selects the operation, encoded in the low two decimal digits of an
// instruction's first cell.
type Opcode int

// The instruction set. The opcode space is small, fixed, and closed; decode
// dispatches over an exhaustive table and anything else is ErrUnknownOpcode.
const (
	OpAdd         Opcode = 1  // p3 := p1 + p2
	OpMultiply    Opcode = 2  // p3 := p1 * p2
	OpInput       Opcode = 3  // p1 := next input value
	OpOutput      Opcode = 4  // emit p1
	OpJumpIfTrue  Opcode = 5  // if p1 != 0 then ip := p2
	OpJumpIfFalse Opcode = 6  // if p1 == 0 then ip := p2
	OpLessThan    Opcode = 7  // p3 := (p1 < p2) ? 1 : 0
	OpEquals      Opcode = 8  // p3 := (p1 == p2) ? 1 : 0
	OpHalt        Opcode = 99 // mark machine halted
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name   string // mnemonic
	Params int    // number of parameters
	Width  int    // cells occupied, including the opcode cell
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpAdd:         {"add", 3, 4},
	OpMultiply:    {"mul", 3, 4},
	OpInput:       {"in", 1, 2},
	OpOutput:      {"out", 1, 2},
	OpJumpIfTrue:  {"jnz", 2, 3},
	OpJumpIfFalse: {"jz", 2, 3},
	OpLessThan:    {"lt", 3, 4},
	OpEquals:      {"eq", 3, 4},
	OpHalt:        {"done", 0, 1},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() (OpcodeInfo, bool) {
	info, ok := opcodeTable[op]
	return info, ok
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	if info, ok := opcodeTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("unknown(%d)", int(op))
}

// ---------------------------------------------------------------------------
// Instruction decode
// ---------------------------------------------------------------------------

// instructionWindow is the widest instruction in cells.
const instructionWindow = 4

// Instruction is one decoded operation: opcode, resolved parameters, and the
// address it was decoded from. Instructions are decoded fresh from memory on
// every step so that self-modifying writes to the instruction stream are
// observed on the next pass.
type Instruction struct {
	Op     Opcode
	Addr   Address
	params [3]Param
}

// decodeInstruction decodes the instruction at the given address from a
// memory window starting there.
func decodeInstruction(win []Value, at Address) (Instruction, error) {
	op := Opcode(win[0] % 100)
	info, ok := opcodeTable[op]
	if !ok {
		return Instruction{}, fmt.Errorf("%w: opcode %d at address %d", ErrUnknownOpcode, win[0]%100, at)
	}
	if len(win) < info.Width {
		return Instruction{}, fmt.Errorf("%w: instruction %s at address %d needs %d cells, %d remain",
			ErrOutOfBounds, info.Name, at, info.Width, len(win))
	}
	in := Instruction{Op: op, Addr: at}
	for n := 0; n < info.Params; n++ {
		p, err := decodeParam(win, n, at)
		if err != nil {
			return Instruction{}, err
		}
		in.params[n] = p
	}
	return in, nil
}

// execute runs the instruction against the machine, mutating memory, the
// instruction pointer, and the halted flag. Input and Output may suspend on
// the machine's channels; ctx aborts such a suspension.
func (in Instruction) execute(ctx context.Context, m *Machine) error {
	mem := &m.mem
	switch in.Op {
	case OpAdd:
		a, err := in.params[0].Fetch(mem)
		if err != nil {
			return in.fail(err)
		}
		b, err := in.params[1].Fetch(mem)
		if err != nil {
			return in.fail(err)
		}
		if err := in.params[2].Store(mem, a+b); err != nil {
			return in.fail(err)
		}
		m.ip += 4

	case OpMultiply:
		a, err := in.params[0].Fetch(mem)
		if err != nil {
			return in.fail(err)
		}
		b, err := in.params[1].Fetch(mem)
		if err != nil {
			return in.fail(err)
		}
		if err := in.params[2].Store(mem, a*b); err != nil {
			return in.fail(err)
		}
		m.ip += 4

	case OpInput:
		value, err := m.nextInput(ctx)
		if err != nil {
			return in.fail(err)
		}
		if err := in.params[0].Store(mem, value); err != nil {
			return in.fail(err)
		}
		m.ip += 2

	case OpOutput:
		value, err := in.params[0].Fetch(mem)
		if err != nil {
			return in.fail(err)
		}
		if err := m.emit(ctx, value); err != nil {
			return in.fail(err)
		}
		m.ip += 2

	case OpJumpIfTrue:
		cond, err := in.params[0].Fetch(mem)
		if err != nil {
			return in.fail(err)
		}
		if cond != 0 {
			target, err := in.params[1].Fetch(mem)
			if err != nil {
				return in.fail(err)
			}
			m.ip = Address(target)
		} else {
			m.ip += 3
		}

	case OpJumpIfFalse:
		cond, err := in.params[0].Fetch(mem)
		if err != nil {
			return in.fail(err)
		}
		if cond == 0 {
			target, err := in.params[1].Fetch(mem)
			if err != nil {
				return in.fail(err)
			}
			m.ip = Address(target)
		} else {
			m.ip += 3
		}

	case OpLessThan:
		a, err := in.params[0].Fetch(mem)
		if err != nil {
			return in.fail(err)
		}
		b, err := in.params[1].Fetch(mem)
		if err != nil {
			return in.fail(err)
		}
		var result Value
		if a < b {
			result = 1
		}
		if err := in.params[2].Store(mem, result); err != nil {
			return in.fail(err)
		}
		m.ip += 4

	case OpEquals:
		a, err := in.params[0].Fetch(mem)
		if err != nil {
			return in.fail(err)
		}
		b, err := in.params[1].Fetch(mem)
		if err != nil {
			return in.fail(err)
		}
		var result Value
		if a == b {
			result = 1
		}
		if err := in.params[2].Store(mem, result); err != nil {
			return in.fail(err)
		}
		m.ip += 4

	case OpHalt:
		m.halt()
	}
	return nil
}

// fail attaches the instruction's address and mnemonic to an execution error.
func (in Instruction) fail(err error) error {
	return fmt.Errorf("%s at address %d: %w", in.Op, in.Addr, err)
}

func (in Instruction) String() string {
	info := opcodeTable[in.Op]
	parts := make([]string, 0, 1+info.Params)
	parts = append(parts, info.Name)
	for n := 0; n < info.Params; n++ {
		parts = append(parts, in.params[n].String())
	}
	return strings.Join(parts, " ")
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// Disassemble returns a best-effort listing of memory as instructions, one
// per line, prefixed with the address. Cells that do not decode (data mixed
// into the instruction stream, or self-modified code) are printed raw and
// skipped one cell at a time.
func Disassemble(mem *Memory) string {
	var sb strings.Builder
	addr := 0
	for addr < mem.Size() {
		win, err := mem.Slice(addr, instructionWindow)
		if err != nil {
			break
		}
		in, err := decodeInstruction(win, addr)
		if err != nil {
			fmt.Fprintf(&sb, "%04d  .cell %d\n", addr, win[0])
			addr++
			continue
		}
		fmt.Fprintf(&sb, "%04d  %s\n", addr, in)
		addr += opcodeTable[in.Op].Width
	}
	return sb.String()
}
