package vm

import (
	"context"
	"fmt"
)

// Machine executes a program held in its own Memory. A Machine has two
// states: running and halted; halting is terminal and idempotent.
//
// Input and output work in one of two modes. In synchronous mode values are
// queued up front with QueueInput and outputs accumulate in a log readable
// via Outputs. In concurrent mode channels are attached with SetInput and
// SetOutput; the input instruction suspends until a value arrives and the
// output instruction suspends while the channel is full, so bounded channels
// give backpressure between cooperating machines. A machine never shares its
// memory, and each channel endpoint has exactly one owner.
type Machine struct {
	mem    Memory
	ip     Address
	halted bool

	queue   []Value      // pending synchronous inputs
	in      <-chan Value // concurrent input, nil in synchronous mode
	out     chan<- Value // concurrent output, nil in synchronous mode
	outputs []Value      // output log, synchronous mode only
}

// New creates a machine owning the given memory.
func New(mem Memory) *Machine {
	return &Machine{mem: mem}
}

// NewFromSource parses program text and creates a machine for it.
func NewFromSource(text string) (*Machine, error) {
	mem, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return New(mem), nil
}

// Memory returns the machine's memory for inspection and configuration.
func (m *Machine) Memory() *Memory {
	return &m.mem
}

// Halted reports whether the machine has executed a halt instruction.
func (m *Machine) Halted() bool {
	return m.halted
}

// Result returns the value at address 0, the conventional program result.
func (m *Machine) Result() (Value, error) {
	return m.mem.Get(0)
}

// SetNoun writes the noun configuration cell (address 1). Values outside
// 0-99 violate the configuration contract.
func (m *Machine) SetNoun(noun Value) error {
	return m.setConfig(1, noun)
}

// SetVerb writes the verb configuration cell (address 2).
func (m *Machine) SetVerb(verb Value) error {
	return m.setConfig(2, verb)
}

func (m *Machine) setConfig(addr Address, value Value) error {
	if value < 0 || value > 99 {
		return fmt.Errorf("%w: %d at address %d", ErrConfigRange, value, addr)
	}
	return m.mem.Set(addr, value)
}

// QueueInput appends values to the synchronous input queue.
func (m *Machine) QueueInput(values ...Value) {
	m.queue = append(m.queue, values...)
}

// SetInput attaches a channel the input instruction receives from.
func (m *Machine) SetInput(ch <-chan Value) {
	m.in = ch
}

// SetOutput attaches a channel the output instruction sends to. The machine
// owns the sending side and closes it when it halts, so a consumer blocked
// on the channel learns that no further values are coming.
func (m *Machine) SetOutput(ch chan<- Value) {
	m.out = ch
}

// Outputs returns the output log accumulated in synchronous mode.
func (m *Machine) Outputs() []Value {
	return m.outputs
}

// Step decodes and executes one instruction at the current instruction
// pointer. Stepping a halted machine does nothing.
func (m *Machine) Step(ctx context.Context) error {
	if m.halted {
		return nil
	}
	win, err := m.mem.Slice(m.ip, instructionWindow)
	if err != nil {
		return err
	}
	in, err := decodeInstruction(win, m.ip)
	if err != nil {
		return err
	}
	return in.execute(ctx, m)
}

// Run steps the machine until it halts. The first error aborts the run; all
// machine errors are fatal for the run and carry instruction context.
func (m *Machine) Run(ctx context.Context) error {
	for !m.halted {
		if err := m.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunCollect runs the machine in synchronous mode and returns its output log.
func (m *Machine) RunCollect(ctx context.Context) ([]Value, error) {
	if err := m.Run(ctx); err != nil {
		return nil, err
	}
	return m.outputs, nil
}

// nextInput produces the next input value: from the attached channel if one
// is present, otherwise from the synchronous queue. A closed channel or an
// empty queue means the program demanded more input than the run supplies.
func (m *Machine) nextInput(ctx context.Context) (Value, error) {
	if m.in != nil {
		select {
		case value, ok := <-m.in:
			if !ok {
				return 0, fmt.Errorf("%w: input channel closed", ErrInputExhausted)
			}
			return value, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if len(m.queue) == 0 {
		return 0, ErrInputExhausted
	}
	value := m.queue[0]
	m.queue = m.queue[1:]
	return value, nil
}

// emit publishes an output value to the attached channel, or appends it to
// the output log when no channel is attached.
func (m *Machine) emit(ctx context.Context, value Value) error {
	if m.out != nil {
		select {
		case m.out <- value:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.outputs = append(m.outputs, value)
	return nil
}

// halt marks the machine done and releases its channel endpoints. Closing
// the output side tells the downstream machine that no further values flow.
func (m *Machine) halt() {
	if m.halted {
		return
	}
	m.halted = true
	if m.out != nil {
		close(m.out)
		m.out = nil
	}
	m.in = nil
}
