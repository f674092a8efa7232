// Package result provides the success-or-failure container that flows
// through every node of the fluxion dataflow graph.
//
// A Result is immutable once constructed. Derivation and transform errors
// are carried as failure Results rather than escaping as panics, so every
// node always holds *some* Result, even when that Result denotes failure.
package result

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrNoPrior is the failure installed as the "previous value" when a filter
// node applies its transform for the very first time. Transform authors can
// test for it with errors.Is to distinguish "no value yet" from a real
// upstream failure.
var ErrNoPrior = errors.New("fluxion: no prior value")

// Result wraps a computed value as either a success holding the value or a
// failure holding the error that prevented computing it.
type Result[T any] struct {
	value T
	err   error
}

// Ok returns a success Result holding v.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Err returns a failure Result holding err.
// A nil err is normalized to a non-nil sentinel so that a failure Result
// can never masquerade as a success.
func Err[T any](err error) Result[T] {
	if err == nil {
		err = errors.New("fluxion: failure with nil error")
	}
	return Result[T]{err: err}
}

// Value returns the payload and error. For a success the error is nil; for
// a failure the payload is the zero value.
func (r Result[T]) Value() (T, error) {
	return r.value, r.err
}

// MustValue returns the payload, panicking on a failure Result.
// Intended for tests and examples where a failure is a bug.
func (r Result[T]) MustValue() T {
	if r.err != nil {
		panic(fmt.Sprintf("result: MustValue on failure: %v", r.err))
	}
	return r.value
}

// Failed reports whether r is a failure.
func (r Result[T]) Failed() bool {
	return r.err != nil
}

// Error returns the failure's error, or nil for a success.
func (r Result[T]) Error() error {
	return r.err
}

// Equal reports structural equality between two Results.
//
// Two successes are equal iff their payloads are equal: == for the common
// comparable kinds, reflect.DeepEqual otherwise. Two failures are equal iff
// they hold the identical error value (== on the error interface): a
// repeated sentinel error compares equal, two separately constructed errors
// do not. A success never equals a failure.
func (r Result[T]) Equal(other Result[T]) bool {
	if r.err != nil || other.err != nil {
		return r.err == other.err
	}
	return valuesEqual(r.value, other.value)
}

// String renders the Result for diagnostics.
func (r Result[T]) String() string {
	if r.err != nil {
		return fmt.Sprintf("Failure(%v)", r.err)
	}
	return fmt.Sprintf("Success(%v)", r.value)
}

// valuesEqual provides type-appropriate equality checking.
// Uses == for comparable kinds and reflect.DeepEqual for others.
func valuesEqual[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int8:
		return av == any(b).(int8)
	case int16:
		return av == any(b).(int16)
	case int32:
		return av == any(b).(int32)
	case int64:
		return av == any(b).(int64)
	case uint:
		return av == any(b).(uint)
	case uint8:
		return av == any(b).(uint8)
	case uint16:
		return av == any(b).(uint16)
	case uint32:
		return av == any(b).(uint32)
	case uint64:
		return av == any(b).(uint64)
	case float32:
		return av == any(b).(float32)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	default:
		// Fall back to reflect.DeepEqual for slices, maps, structs, etc.
		return reflect.DeepEqual(a, b)
	}
}
