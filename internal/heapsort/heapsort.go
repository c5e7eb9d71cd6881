// Package heapsort sorts slices in place with a binary max-heap.
//
// The sort is not stable and allocates nothing beyond the input slice.
package heapsort

import (
	"cmp"

	"github.com/pkg/errors"
)

var (
	ErrNilSequence   = errors.New("nil sequence")
	ErrNilComparison = errors.New("nil comparison function")
	ErrIncomparable  = errors.New("elements could not be compared")
)

// CompareFunc is a three-way comparison that may fail. It returns a negative
// number when a sorts before b and a positive number when b sorts before a.
type CompareFunc[T any] func(a, b T) (int, error)

// CompareError carries the error returned by a CompareFunc. It matches
// ErrIncomparable and unwraps to the comparison's own error.
type CompareError struct {
	Err error
}

func (e *CompareError) Error() string {
	return ErrIncomparable.Error() + ": " + e.Err.Error()
}

func (e *CompareError) Is(target error) bool {
	return target == ErrIncomparable
}

func (e *CompareError) Unwrap() error {
	return e.Err
}

type lessFunc[T any] func(a, b T) (bool, error)

// Sort sorts s in ascending order. NaNs sort before all other floats.
func Sort[T cmp.Ordered](s []T) error {
	if s == nil {
		return ErrNilSequence
	}
	return heapSort(s, func(a, b T) (bool, error) {
		return cmp.Less(a, b), nil
	})
}

// SortFunc sorts s in ascending order as determined by less.
func SortFunc[T any](s []T, less func(a, b T) bool) error {
	if s == nil {
		return ErrNilSequence
	}
	if less == nil {
		return ErrNilComparison
	}
	return heapSort(s, func(a, b T) (bool, error) {
		return less(a, b), nil
	})
}

// SortCompare sorts s in ascending order as determined by compare. The first
// comparison error stops the sort; s is then some permutation of its input.
func SortCompare[T any](s []T, compare CompareFunc[T]) error {
	if s == nil {
		return ErrNilSequence
	}
	if compare == nil {
		return ErrNilComparison
	}
	return heapSort(s, func(a, b T) (bool, error) {
		c, err := compare(a, b)
		if err != nil {
			return false, &CompareError{Err: err}
		}
		return c < 0, nil
	})
}

// IsSorted reports whether s is in ascending order, with NaNs first.
func IsSorted[T cmp.Ordered](s []T) bool {
	return IsSortedFunc(s, cmp.Less[T])
}

// IsSortedFunc reports whether s is in ascending order according to less.
func IsSortedFunc[T any](s []T, less func(a, b T) bool) bool {
	for i := len(s) - 1; i > 0; i-- {
		if less(s[i], s[i-1]) {
			return false
		}
	}
	return true
}

func heapSort[T any](s []T, less lessFunc[T]) error {
	if err := buildHeap(s, less); err != nil {
		return err
	}

	for i := len(s) - 1; i > 0; i-- {
		swap(s, 0, i)
		if err := siftDown(s, 0, i, less); err != nil {
			return err
		}
	}
	return nil
}

func buildHeap[T any](s []T, less lessFunc[T]) error {
	n := len(s)
	for i := n / 2; i >= 0; i-- {
		if err := siftDown(s, i, n, less); err != nil {
			return err
		}
	}
	return nil
}

// siftDown restores the max-heap property of s[:n] at pos, assuming both
// subtrees of pos are already heaps. The displaced root is written once.
func siftDown[T any](s []T, pos, n int, less lessFunc[T]) error {
	if pos >= n {
		return nil
	}

	root := s[pos]
	for child := 2*pos + 1; child < n; child = 2*pos + 1 {
		if child+1 < n {
			right, err := less(s[child], s[child+1])
			if err != nil {
				s[pos] = root
				return err
			}
			if right {
				child++
			}
		}

		smaller, err := less(root, s[child])
		if err != nil {
			s[pos] = root
			return err
		}
		if !smaller {
			break
		}
		s[pos] = s[child]
		pos = child
	}
	s[pos] = root
	return nil
}

func swap[T any](s []T, i, j int) {
	s[i], s[j] = s[j], s[i]
}
