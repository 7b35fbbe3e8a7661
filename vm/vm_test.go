package vm

import (
	"context"
	"errors"
	"slices"
	"testing"
)

// runProgram runs the given cells to completion and returns the machine.
func runProgram(t *testing.T, cells []Value) *Machine {
	t.Helper()
	m := New(NewMemory(cells))
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return m
}

// collect runs a program with queued inputs and returns its output log.
func collect(t *testing.T, cells, inputs []Value) []Value {
	t.Helper()
	m := New(NewMemory(cells))
	m.QueueInput(inputs...)
	out, err := m.RunCollect(context.Background())
	if err != nil {
		t.Fatalf("RunCollect failed: %v", err)
	}
	return out
}

// ---------------------------------------------------------------------------
// Arithmetic and self-modifying programs
// ---------------------------------------------------------------------------

func TestRunArithmetic(t *testing.T) {
	tests := []struct {
		program []Value
		want    []Value
	}{
		{[]Value{1, 0, 0, 0, 99}, []Value{2, 0, 0, 0, 99}},
		{[]Value{2, 3, 0, 3, 99}, []Value{2, 3, 0, 6, 99}},
		{[]Value{2, 4, 4, 5, 99, 0}, []Value{2, 4, 4, 5, 99, 9801}},
		// Writes into the instruction stream; the new cell must be decoded.
		{[]Value{1, 1, 1, 4, 99, 5, 6, 0, 99}, []Value{30, 1, 1, 4, 2, 5, 6, 0, 99}},
	}
	for _, tt := range tests {
		m := runProgram(t, slices.Clone(tt.program))
		if got := m.Memory().Dump(); !slices.Equal(got, tt.want) {
			t.Errorf("program %v left memory %v, want %v", tt.program, got, tt.want)
		}
	}
}

func TestStepAndHaltIdempotence(t *testing.T) {
	ctx := context.Background()
	m := New(NewMemory([]Value{1, 0, 0, 0, 99}))

	if err := m.Step(ctx); err != nil {
		t.Fatal(err)
	}
	if m.Halted() {
		t.Fatal("halted after one step")
	}
	if err := m.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if !m.Halted() {
		t.Fatal("not halted after run")
	}

	// Stepping a halted machine must not mutate anything.
	before := m.Memory().Dump()
	if err := m.Step(ctx); err != nil {
		t.Fatalf("step after halt: %v", err)
	}
	if !m.Halted() {
		t.Error("machine un-halted itself")
	}
	if got := m.Memory().Dump(); !slices.Equal(got, before) {
		t.Errorf("step after halt mutated memory: %v -> %v", before, got)
	}
}

func TestParameterModes(t *testing.T) {
	// mul [4] 3 -> [4]: 33*3 = 99, which is then decoded as halt.
	m := runProgram(t, []Value{1002, 4, 3, 4, 33})
	if got := m.Memory().Dump(); !slices.Equal(got, []Value{1002, 4, 3, 4, 99}) {
		t.Errorf("memory = %v", got)
	}
}

// ---------------------------------------------------------------------------
// Comparison and jump programs
// ---------------------------------------------------------------------------

func TestComparisons(t *testing.T) {
	tests := []struct {
		name    string
		program []Value
		input   Value
		want    Value
	}{
		{"position equals 8", []Value{3, 9, 8, 9, 10, 9, 4, 9, 99, -1, 8}, 8, 1},
		{"position equals 5", []Value{3, 9, 8, 9, 10, 9, 4, 9, 99, -1, 8}, 5, 0},
		{"position less-than 5", []Value{3, 9, 7, 9, 10, 9, 4, 9, 99, -1, 8}, 5, 1},
		{"position less-than 8", []Value{3, 9, 7, 9, 10, 9, 4, 9, 99, -1, 8}, 8, 0},
		{"immediate equals 8", []Value{3, 3, 1108, -1, 8, 3, 4, 3, 99}, 8, 1},
		{"immediate equals 5", []Value{3, 3, 1108, -1, 8, 3, 4, 3, 99}, 5, 0},
		{"immediate less-than 5", []Value{3, 3, 1107, -1, 8, 3, 4, 3, 99}, 5, 1},
		{"immediate less-than 8", []Value{3, 3, 1107, -1, 8, 3, 4, 3, 99}, 8, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := collect(t, slices.Clone(tt.program), []Value{tt.input})
			if !slices.Equal(out, []Value{tt.want}) {
				t.Errorf("output = %v, want [%d]", out, tt.want)
			}
		})
	}
}

func TestJumps(t *testing.T) {
	position := []Value{3, 12, 6, 12, 15, 1, 13, 14, 13, 4, 13, 99, -1, 0, 1, 9}
	immediate := []Value{3, 3, 1105, -1, 9, 1101, 0, 0, 12, 4, 12, 99, 1}

	for _, program := range [][]Value{position, immediate} {
		for input, want := range map[Value]Value{0: 0, 7: 1} {
			out := collect(t, slices.Clone(program), []Value{input})
			if !slices.Equal(out, []Value{want}) {
				t.Errorf("program %v input %d: output = %v, want [%d]", program, input, out, want)
			}
		}
	}
}

func TestBranchingDiagnostic(t *testing.T) {
	// Outputs 999 below 8, 1000 at 8, 1001 above 8.
	program := []Value{
		3, 21, 1008, 21, 8, 20, 1005, 20, 22, 107, 8, 21, 20, 1006, 20, 31,
		1106, 0, 36, 98, 0, 0, 1002, 21, 125, 20, 4, 20, 1105, 1, 46, 104,
		999, 1105, 1, 46, 1101, 1000, 1, 20, 4, 20, 1105, 1, 46, 98, 99,
	}
	for input, want := range map[Value]Value{5: 999, 8: 1000, 11: 1001} {
		out := collect(t, slices.Clone(program), []Value{input})
		if !slices.Equal(out, []Value{want}) {
			t.Errorf("input %d: output = %v, want [%d]", input, out, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Configuration cells
// ---------------------------------------------------------------------------

func TestNounVerb(t *testing.T) {
	m := New(NewMemory([]Value{1, 0, 0, 0, 99}))
	if err := m.SetNoun(1); err != nil {
		t.Fatal(err)
	}
	if err := m.SetVerb(2); err != nil {
		t.Fatal(err)
	}
	got := m.Memory().Dump()
	if got[1] != 1 || got[2] != 2 {
		t.Errorf("configuration cells = %v", got[1:3])
	}

	if err := m.SetNoun(100); !errors.Is(err, ErrConfigRange) {
		t.Errorf("SetNoun(100) error = %v, want ErrConfigRange", err)
	}
	if err := m.SetVerb(-1); !errors.Is(err, ErrConfigRange) {
		t.Errorf("SetVerb(-1) error = %v, want ErrConfigRange", err)
	}
}

// ---------------------------------------------------------------------------
// Error cases
// ---------------------------------------------------------------------------

func TestErrorTaxonomy(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		program []Value
		want    error
	}{
		{"unknown opcode", []Value{42, 0, 0, 0}, ErrUnknownOpcode},
		{"unknown parameter mode", []Value{207, 0, 0, 0, 99}, ErrUnknownParameterMode},
		{"store to immediate", []Value{10001, 0, 0, 0, 99}, ErrInvalidStoreTarget},
		{"read out of bounds", []Value{1, 9, 9, 9, 99}, ErrOutOfBounds},
		{"jump out of bounds", []Value{1105, 1, 100, 99}, ErrOutOfBounds},
		{"input exhausted", []Value{3, 0, 99}, ErrInputExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(NewMemory(tt.program))
			err := m.Run(ctx)
			if !errors.Is(err, tt.want) {
				t.Errorf("Run error = %v, want %v", err, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Channel I/O
// ---------------------------------------------------------------------------

func TestChannelIO(t *testing.T) {
	// Echo: read one value, write it back, halt.
	m := New(NewMemory([]Value{3, 0, 4, 0, 99}))
	in := make(chan Value, 1)
	out := make(chan Value, 1)
	m.SetInput(in)
	m.SetOutput(out)

	in <- 7
	done := make(chan error, 1)
	go func() {
		done <- m.Run(context.Background())
	}()

	if got := <-out; got != 7 {
		t.Errorf("output = %d, want 7", got)
	}
	if _, ok := <-out; ok {
		t.Error("output channel not closed after halt")
	}
	if err := <-done; err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func TestInputFromClosedChannel(t *testing.T) {
	m := New(NewMemory([]Value{3, 0, 99}))
	in := make(chan Value)
	close(in)
	m.SetInput(in)

	if err := m.Run(context.Background()); !errors.Is(err, ErrInputExhausted) {
		t.Errorf("Run error = %v, want ErrInputExhausted", err)
	}
}

func TestInputCancellation(t *testing.T) {
	m := New(NewMemory([]Value{3, 0, 99}))
	m.SetInput(make(chan Value))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}
