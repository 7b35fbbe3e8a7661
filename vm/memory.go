// Package vm implements a small virtual machine for programs encoded as a
// flat array of signed integers. A Machine owns a dense, bounds-checked
// Memory and executes a fetch-decode-execute loop over it. Input and output
// either go through queued values and an output log (synchronous mode) or
// through attached channels (concurrent mode, used by the amp package to
// wire machines into pipelines).
package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a single memory cell.
type Value int64

// Address indexes a memory cell.
type Address = int

// ---------------------------------------------------------------------------
// Memory
// ---------------------------------------------------------------------------

// Memory is a fixed-length range of signed integer cells addressed from zero.
// Every access is bounds-checked; there is no growth and no sparse backing.
type Memory struct {
	cells []Value
}

// NewMemory creates a Memory owning the given cells.
func NewMemory(cells []Value) Memory {
	return Memory{cells: cells}
}

// Parse loads memory from program text: comma-separated decimal integers,
// optionally spread over multiple lines. The first malformed field aborts
// the parse with an error naming the offending text.
func Parse(text string) (Memory, error) {
	var cells []Value
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, field := range strings.Split(line, ",") {
			field = strings.TrimSpace(field)
			n, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return Memory{}, fmt.Errorf("%w: field %q is not an integer", ErrMalformedProgram, field)
			}
			cells = append(cells, Value(n))
		}
	}
	if len(cells) == 0 {
		return Memory{}, fmt.Errorf("%w: no cells", ErrMalformedProgram)
	}
	return NewMemory(cells), nil
}

// Size returns the number of cells.
func (m *Memory) Size() int {
	return len(m.cells)
}

// Get returns the value at the given address.
func (m *Memory) Get(addr Address) (Value, error) {
	if addr < 0 || addr >= len(m.cells) {
		return 0, fmt.Errorf("%w: reading address %d, size %d", ErrOutOfBounds, addr, len(m.cells))
	}
	return m.cells[addr], nil
}

// Set stores a value at the given address. Memory never resizes.
func (m *Memory) Set(addr Address, value Value) error {
	if addr < 0 || addr >= len(m.cells) {
		return fmt.Errorf("%w: writing address %d, size %d", ErrOutOfBounds, addr, len(m.cells))
	}
	m.cells[addr] = value
	return nil
}

// Slice returns a read-only window of up to n cells starting at addr. The
// window is clamped to the end of memory, but a start address past the end
// is an error.
func (m *Memory) Slice(addr Address, n int) ([]Value, error) {
	if addr < 0 || addr >= len(m.cells) {
		return nil, fmt.Errorf("%w: reading window %d..%d, size %d", ErrOutOfBounds, addr, addr+n, len(m.cells))
	}
	end := addr + n
	if end > len(m.cells) {
		end = len(m.cells)
	}
	return m.cells[addr:end], nil
}

// Clone returns an independent copy. Mutating the copy never affects the
// original; pipelines rely on this to give every machine its own program.
func (m *Memory) Clone() Memory {
	cells := make([]Value, len(m.cells))
	copy(cells, m.cells)
	return NewMemory(cells)
}

// Dump returns a copy of all cells, for inspection and tests.
func (m *Memory) Dump() []Value {
	cells := make([]Value, len(m.cells))
	copy(cells, m.cells)
	return cells
}
