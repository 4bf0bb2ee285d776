package db

import "bytes"

// Comparator defines a total order over opaque byte-string keys. It is
// used to order the staging index and to break ties between the
// staging index and the persistent store inside a merged cursor.
//
// The persistent store itself (bbolt) always iterates in plain
// byte-lexicographic order; a Comparator installed via
// Environment.SetComparator only reorders the staging index side of a
// merge and the cursor's tie-break direction, it does not reorder what
// is already on disk. See Environment.SetComparator.
type Comparator func(a, b []byte) int

// DefaultCompare is byte-lexicographic comparison, identical to the
// order bbolt's bucket keys are already stored in.
func DefaultCompare(a, b []byte) int {
	return bytes.Compare(a, b)
}
