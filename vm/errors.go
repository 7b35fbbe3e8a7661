package vm

import "errors"

// Error taxonomy for the machine. All of these are fatal for the run that
// raises them: they indicate broken programs or broken data, not operational
// faults, and are never retried. Callers discriminate with errors.Is; the
// wrapped message carries the instruction address and opcode context.
var (
	// ErrOutOfBounds reports a read, write, or window start at an address
	// past the end of memory.
	ErrOutOfBounds = errors.New("memory access out of bounds")

	// ErrUnknownOpcode reports an opcode outside the dispatch table.
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrUnknownParameterMode reports a parameter mode digit outside {0, 1}.
	ErrUnknownParameterMode = errors.New("unknown parameter mode")

	// ErrInvalidStoreTarget reports a store through an immediate parameter.
	ErrInvalidStoreTarget = errors.New("store to immediate parameter")

	// ErrInputExhausted reports an input instruction with no available and
	// no forthcoming value.
	ErrInputExhausted = errors.New("input exhausted")

	// ErrMalformedProgram reports unparseable program text.
	ErrMalformedProgram = errors.New("malformed program text")

	// ErrConfigRange reports a noun/verb configuration value outside 0-99.
	ErrConfigRange = errors.New("configuration value out of range")
)
