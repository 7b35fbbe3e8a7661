package amp

import (
	"context"
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/ampvm/vm"
)

var log = commonlog.GetLogger("ampvm.amp")

// ErrTargetNotFound reports a noun/verb search that exhausted the
// configuration space without reaching the target result.
var ErrTargetNotFound = errors.New("no noun/verb configuration reaches the target")

// Result is the outcome of a phase-space search: the winning phase
// assignment and the signal it produced.
type Result struct {
	Phases []vm.Value
	Signal vm.Value
}

// MaxSignal explores every permutation of the phase set, runs the wired
// chain for each, and returns the assignment with the maximum final signal.
// Ties keep the first-found assignment; the permutation order is
// deterministic, so the selection is stable. Any chain's error aborts the
// whole search with no partial result.
func MaxSignal(ctx context.Context, program vm.Memory, phases []vm.Value, feedback bool) (Result, error) {
	if len(phases) == 0 {
		return Result{}, ErrNoResult
	}
	var best Result
	found := false
	err := Permute(phases, func(p []vm.Value) error {
		signal, err := NewChain(program, p).Run(ctx, feedback)
		if err != nil {
			return fmt.Errorf("phases %v: %w", p, err)
		}
		log.Debugf("phases %v yield signal %d", p, signal)
		if !found || signal > best.Signal {
			best = Result{Phases: append([]vm.Value(nil), p...), Signal: signal}
			found = true
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return best, nil
}

// SearchNounVerb scans noun/verb configurations in [0,99]x[0,99], in order,
// for the first one whose program run leaves the target value at address 0.
func SearchNounVerb(ctx context.Context, program vm.Memory, target vm.Value) (noun, verb vm.Value, err error) {
	for noun = 0; noun <= 99; noun++ {
		for verb = 0; verb <= 99; verb++ {
			m := vm.New(program.Clone())
			if err := m.SetNoun(noun); err != nil {
				return 0, 0, err
			}
			if err := m.SetVerb(verb); err != nil {
				return 0, 0, err
			}
			if err := m.Run(ctx); err != nil {
				return 0, 0, fmt.Errorf("noun %d verb %d: %w", noun, verb, err)
			}
			result, err := m.Result()
			if err != nil {
				return 0, 0, err
			}
			if result == target {
				log.Infof("noun %d verb %d produce result %d", noun, verb, result)
				return noun, verb, nil
			}
		}
	}
	return 0, 0, ErrTargetNotFound
}
