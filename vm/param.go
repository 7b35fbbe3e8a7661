package vm

import "fmt"

// Mode is a parameter addressing mode.
type Mode int

// Known addressing modes, encoded as decimal digits above the opcode's two
// least-significant digits.
const (
	ModePosition  Mode = 0 // parameter is an address holding the value
	ModeImmediate Mode = 1 // parameter is the value itself
)

// Param is a decoded instruction operand. Params are recomputed on every
// decode and never persisted.
type Param struct {
	mode Mode
	addr Address // position mode
	lit  Value   // immediate mode
}

// decodeParam decodes parameter n (zero-based) of the instruction window.
// The window's first cell carries the opcode in its low two digits and one
// mode digit per parameter above those.
func decodeParam(win []Value, n int, at Address) (Param, error) {
	div := Value(100)
	for i := 0; i < n; i++ {
		div *= 10
	}
	mode := win[0] / div % 10
	switch Mode(mode) {
	case ModePosition:
		return Param{mode: ModePosition, addr: Address(win[1+n])}, nil
	case ModeImmediate:
		return Param{mode: ModeImmediate, lit: win[1+n]}, nil
	default:
		return Param{}, fmt.Errorf("%w: mode %d for parameter %d in instruction %d at address %d",
			ErrUnknownParameterMode, mode, n, win[0], at)
	}
}

// Fetch resolves the parameter to a value, reading memory in position mode.
func (p Param) Fetch(mem *Memory) (Value, error) {
	switch p.mode {
	case ModeImmediate:
		return p.lit, nil
	default:
		return mem.Get(p.addr)
	}
}

// Store writes a value through the parameter. Immediate parameters are
// read-only; storing through one is fatal.
func (p Param) Store(mem *Memory, value Value) error {
	if p.mode == ModeImmediate {
		return fmt.Errorf("%w: value %d", ErrInvalidStoreTarget, p.lit)
	}
	return mem.Set(p.addr, value)
}

func (p Param) String() string {
	if p.mode == ModeImmediate {
		return fmt.Sprintf("%d", p.lit)
	}
	return fmt.Sprintf("[%d]", p.addr)
}
