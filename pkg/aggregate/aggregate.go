// Package aggregate defines AggregateOperation, the associative,
// commutative accumulation contract shared by every windowing operator
// (spec.md section 3, section 6), plus a small library of ready-made
// operations mirroring Hazelcast Jet's AggregateOperations factory —
// present in the original design, dropped by the distillation.
package aggregate

// Operation1 is a single-input aggregate operation: Create builds a
// fresh accumulator, Accumulate folds one item into it, Combine merges
// two accumulators (must be associative and commutative), Deduct is the
// optional inverse of Combine (enables incremental sliding-window
// maintenance), and Finish projects the accumulator to a result.
type Operation1[T, A, R any] struct {
	Create     func() A
	Accumulate func(A, T) A
	Combine    func(A, A) A
	Deduct     func(A, A) A // optional; nil if undefined.
	Finish     func(A) R
}

// WithFinishFn returns a copy of op with Finish replaced. Used to derive
// a last-stage finishing operation from a stage-1 accumulate-only
// operation (spec.md section 4.4.4: stage-1's Finish is identity).
func (op Operation1[T, A, R]) WithFinishFn(finish func(A) R) Operation1[T, A, R] {
	var out = op
	out.Finish = finish
	return out
}

// Identity returns a copy of op whose Finish is the identity function —
// the stage-1 "accumulate" variant of spec.md section 4.4.4, where
// finish is replaced by identity so raw accumulators flow downstream.
func Identity[T, A any](op Operation1[T, A, A]) Operation1[T, A, A] {
	return op.WithFinishFn(func(a A) A { return a })
}

// AsCombining returns an Operation1[A, A, R] that treats A itself as the
// input type and uses Combine in place of Accumulate — the stage-2
// "combine" variant of spec.md section 4.4.4, built from a stage-1
// operation via WithCombiningAccumulateFn semantics.
func AsCombining[T, A, R any](op Operation1[T, A, R]) Operation1[A, A, R] {
	return Operation1[A, A, R]{
		Create:     op.Create,
		Accumulate: op.Combine,
		Combine:    op.Combine,
		Deduct:     op.Deduct,
		Finish:     op.Finish,
	}
}

// Counting returns an Operation1 that counts items.
func Counting[T any]() Operation1[T, int64, int64] {
	return Operation1[T, int64, int64]{
		Create:     func() int64 { return 0 },
		Accumulate: func(a int64, _ T) int64 { return a + 1 },
		Combine:    func(a, b int64) int64 { return a + b },
		Deduct:     func(a, b int64) int64 { return a - b },
		Finish:     func(a int64) int64 { return a },
	}
}

// SummingLong returns an Operation1 that sums an int64 projection of T.
func SummingLong[T any](project func(T) int64) Operation1[T, int64, int64] {
	return Operation1[T, int64, int64]{
		Create:     func() int64 { return 0 },
		Accumulate: func(a int64, t T) int64 { return a + project(t) },
		Combine:    func(a, b int64) int64 { return a + b },
		Deduct:     func(a, b int64) int64 { return a - b },
		Finish:     func(a int64) int64 { return a },
	}
}

// SummingDouble returns an Operation1 that sums a float64 projection of
// T. Deduct is omitted: floating-point subtraction is not an exact
// inverse of repeated addition, so sliding windows built on this
// operation always re-fold from retained frames rather than maintaining
// an incremental running total.
func SummingDouble[T any](project func(T) float64) Operation1[T, float64, float64] {
	return Operation1[T, float64, float64]{
		Create:     func() float64 { return 0 },
		Accumulate: func(a float64, t T) float64 { return a + project(t) },
		Combine:    func(a, b float64) float64 { return a + b },
		Finish:     func(a float64) float64 { return a },
	}
}

// MaxByAcc is the accumulator MaxBy/MinBy retain: the best item seen so
// far and whether any item has been seen yet.
type MaxByAcc[T any] struct {
	Best  T
	Valid bool
}

// MaxBy returns an Operation1 that retains the item with the greatest
// compare(a,b) > 0 ranking.
func MaxBy[T any](compare func(a, b T) int) Operation1[T, MaxByAcc[T], T] {
	var better = func(a, b MaxByAcc[T]) MaxByAcc[T] {
		switch {
		case !a.Valid:
			return b
		case !b.Valid:
			return a
		case compare(b.Best, a.Best) > 0:
			return b
		default:
			return a
		}
	}
	return Operation1[T, MaxByAcc[T], T]{
		Create: func() MaxByAcc[T] { return MaxByAcc[T]{} },
		Accumulate: func(a MaxByAcc[T], t T) MaxByAcc[T] {
			return better(a, MaxByAcc[T]{Best: t, Valid: true})
		},
		Combine: better,
		Finish:  func(a MaxByAcc[T]) T { return a.Best },
	}
}

// MinBy returns an Operation1 that retains the item with the smallest
// compare(a,b) ranking.
func MinBy[T any](compare func(a, b T) int) Operation1[T, MaxByAcc[T], T] {
	return MaxBy[T](func(a, b T) int { return compare(b, a) })
}

// ToList returns an Operation1 that collects every item into a slice, in
// accumulation order.
func ToList[T any]() Operation1[T, []T, []T] {
	return Operation1[T, []T, []T]{
		Create:     func() []T { return nil },
		Accumulate: func(a []T, t T) []T { return append(a, t) },
		Combine:    func(a, b []T) []T { return append(append([]T{}, a...), b...) },
		Finish:     func(a []T) []T { return a },
	}
}
