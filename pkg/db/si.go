package db

import "github.com/google/btree"

// siDegree is the B-tree branching factor; btree.New wants a minimum
// degree, not a capacity, so this has no relation to expected SI size.
const siDegree = 32

// siItem is one pending write or tombstone in a transaction's staging
// index. cmp is carried per-item rather than per-tree because
// google/btree's classic Item interface asks each item to compare
// itself against another, it has no separate comparator slot.
type siItem struct {
	key     []byte
	val     []byte
	deleted bool
	cmp     Comparator
}

func (a siItem) Less(than btree.Item) bool {
	b := than.(siItem)
	return a.cmp(a.key, b.key) < 0
}

// stagingIndex (C3) is the per-transaction in-memory overlay of
// uncommitted writes. It is deliberately NOT backed by bbolt: bbolt's
// own writer serializes at Begin(true), which would make two concurrent
// read-write transactions block each other before either reached
// Commit. google/btree's tree has no such lock, so every read-write
// transaction gets an independent staging index and only Commit itself
// is serialized, against the persistent store.
type stagingIndex struct {
	tree *btree.BTree
	cmp  Comparator
}

func newStagingIndex(cmp Comparator) *stagingIndex {
	return &stagingIndex{tree: btree.New(siDegree), cmp: cmp}
}

func (s *stagingIndex) put(key, val []byte, deleted bool) {
	k := append([]byte(nil), key...)
	var v []byte
	if val != nil {
		v = append([]byte(nil), val...)
	}
	s.tree.ReplaceOrInsert(siItem{key: k, val: v, deleted: deleted, cmp: s.cmp})
}

func (s *stagingIndex) get(key []byte) (siItem, bool) {
	it := s.tree.Get(siItem{key: key, cmp: s.cmp})
	if it == nil {
		return siItem{}, false
	}
	return it.(siItem), true
}

func (s *stagingIndex) len() int { return s.tree.Len() }

// seekGE returns the smallest item with key >= pivot.
func (s *stagingIndex) seekGE(pivot []byte) (siItem, bool) {
	var found siItem
	ok := false
	s.tree.AscendGreaterOrEqual(siItem{key: pivot, cmp: s.cmp}, func(i btree.Item) bool {
		found, ok = i.(siItem), true
		return false
	})
	return found, ok
}

// seekLE returns the largest item with key <= pivot.
func (s *stagingIndex) seekLE(pivot []byte) (siItem, bool) {
	var found siItem
	ok := false
	s.tree.DescendLessOrEqual(siItem{key: pivot, cmp: s.cmp}, func(i btree.Item) bool {
		found, ok = i.(siItem), true
		return false
	})
	return found, ok
}

func (s *stagingIndex) min() (siItem, bool) {
	it := s.tree.Min()
	if it == nil {
		return siItem{}, false
	}
	return it.(siItem), true
}

func (s *stagingIndex) max() (siItem, bool) {
	it := s.tree.Max()
	if it == nil {
		return siItem{}, false
	}
	return it.(siItem), true
}

// next returns the smallest item strictly greater than key.
func (s *stagingIndex) next(key []byte) (siItem, bool) {
	var found siItem
	ok, skip := false, true
	s.tree.AscendGreaterOrEqual(siItem{key: key, cmp: s.cmp}, func(i btree.Item) bool {
		it := i.(siItem)
		if skip && s.cmp(it.key, key) == 0 {
			skip = false
			return true
		}
		found, ok = it, true
		return false
	})
	return found, ok
}

// prev returns the largest item strictly less than key.
func (s *stagingIndex) prev(key []byte) (siItem, bool) {
	var found siItem
	ok, skip := false, true
	s.tree.DescendLessOrEqual(siItem{key: key, cmp: s.cmp}, func(i btree.Item) bool {
		it := i.(siItem)
		if skip && s.cmp(it.key, key) == 0 {
			skip = false
			return true
		}
		found, ok = it, true
		return false
	})
	return found, ok
}

// ascend calls fn for every item in ascending key order until fn
// returns false. Used only at commit time to drain the index.
func (s *stagingIndex) ascend(fn func(siItem) bool) {
	s.tree.Ascend(func(i btree.Item) bool {
		return fn(i.(siItem))
	})
}
