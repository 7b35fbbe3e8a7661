package amp

import "github.com/chazu/ampvm/vm"

// Permute invokes fn with every permutation of values, in a deterministic
// order (Heap's algorithm). The slice passed to fn is reused between calls;
// fn must copy it if it wants to keep it. A non-nil error from fn stops the
// enumeration and is returned.
func Permute(values []vm.Value, fn func([]vm.Value) error) error {
	work := make([]vm.Value, len(values))
	copy(work, values)
	return permute(work, len(work), fn)
}

func permute(work []vm.Value, k int, fn func([]vm.Value) error) error {
	if k <= 1 {
		return fn(work)
	}
	for i := 0; i < k-1; i++ {
		if err := permute(work, k-1, fn); err != nil {
			return err
		}
		if k%2 == 0 {
			work[i], work[k-1] = work[k-1], work[i]
		} else {
			work[0], work[k-1] = work[k-1], work[0]
		}
	}
	return permute(work, k-1, fn)
}
