// Package amp composes vm machines into amplifier pipelines: a directed
// chain of machines sharing no memory, connected by bounded value channels,
// optionally with a feedback edge from the last machine back to the first.
// The package also implements the configuration-space searches driven over
// such pipelines.
package amp

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/ampvm/vm"
)

var (
	// ErrNoResult reports a pipeline whose machines all halted without an
	// undelivered value left on the result edge.
	ErrNoResult = errors.New("pipeline produced no result")

	// ErrSurplusOutput reports a pipeline that emitted more result values
	// than its structure promises. Surplus is as fatal as starvation; it is
	// never silently truncated.
	ErrSurplusOutput = errors.New("pipeline produced surplus output")
)

// edgeCapacity bounds every inter-machine channel: room for the phase seed
// plus one in-flight signal. The bound is what forces strict producer and
// consumer alternation in a cyclic wiring; an unbounded edge would let a
// producer race arbitrarily far ahead of a consumer that never drains.
const edgeCapacity = 2

// Chain is an ordered sequence of machines, one per phase setting, each
// loaded with its own clone of the same program.
type Chain struct {
	machines []*vm.Machine
	phases   []vm.Value
}

// NewChain builds a chain for one phase assignment. Every machine gets an
// independent memory clone; a chain is built fresh per candidate assignment
// and torn down after its result is observed.
func NewChain(program vm.Memory, phases []vm.Value) *Chain {
	machines := make([]*vm.Machine, len(phases))
	for i := range phases {
		machines[i] = vm.New(program.Clone())
	}
	return &Chain{machines: machines, phases: phases}
}

// RunLinear runs the chain synchronously: each machine runs to completion
// and its whole output log becomes the next machine's input, after that
// machine's phase setting. The first machine additionally receives the
// initial signal 0. The chain's structure promises exactly one final value.
func (c *Chain) RunLinear(ctx context.Context) (vm.Value, error) {
	carry := []vm.Value{0}
	for i, m := range c.machines {
		m.QueueInput(c.phases[i])
		m.QueueInput(carry...)
		out, err := m.RunCollect(ctx)
		if err != nil {
			return 0, fmt.Errorf("amplifier %d: %w", i, err)
		}
		carry = out
	}
	switch len(carry) {
	case 0:
		return 0, ErrNoResult
	case 1:
		return carry[0], nil
	default:
		return 0, fmt.Errorf("%w: %d values", ErrSurplusOutput, len(carry))
	}
}

// RunFeedback runs the chain concurrently with the last machine's output
// wired back into the first machine's input. Every machine runs as its own
// goroutine; input suspends until a value arrives and output suspends under
// backpressure, so the cycle proceeds in lockstep. The run completes when
// every machine has halted, and the result is the final value the last
// machine emitted onto the feedback edge: exactly one undelivered value must
// remain there.
func (c *Chain) RunFeedback(ctx context.Context) (vm.Value, error) {
	n := len(c.machines)
	if n == 0 {
		return 0, ErrNoResult
	}

	// Edge i feeds machine i and is produced by machine i-1 (mod n), so
	// every endpoint has exactly one owner. Each edge is seeded with its
	// machine's phase setting; the first also gets the initial signal.
	edges := make([]chan vm.Value, n)
	for i := range edges {
		edges[i] = make(chan vm.Value, edgeCapacity)
		edges[i] <- c.phases[i]
	}
	edges[0] <- 0

	for i, m := range c.machines {
		m.SetInput(edges[i])
		m.SetOutput(edges[(i+1)%n])
	}

	// One goroutine per machine; the first error cancels the group context,
	// which unblocks any machine suspended on a channel, so an abandoned
	// pipeline never leaves dangling goroutines.
	g, ctx := errgroup.WithContext(ctx)
	for i, m := range c.machines {
		i, m := i, m
		g.Go(func() error {
			if err := m.Run(ctx); err != nil {
				return fmt.Errorf("amplifier %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	// The last machine closed the feedback edge when it halted, so these
	// reads cannot block.
	result, ok := <-edges[0]
	if !ok {
		return 0, ErrNoResult
	}
	if _, more := <-edges[0]; more {
		return 0, fmt.Errorf("%w on feedback edge", ErrSurplusOutput)
	}
	return result, nil
}

// Run executes the chain in the given topology.
func (c *Chain) Run(ctx context.Context, feedback bool) (vm.Value, error) {
	if feedback {
		return c.RunFeedback(ctx)
	}
	return c.RunLinear(ctx)
}
