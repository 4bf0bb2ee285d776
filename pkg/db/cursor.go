package db

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"go.etcd.io/bbolt"

	"github.com/cuemby/stronglink/pkg/metrics"
)

// State tags which side of a merged cursor is currently authoritative,
// mirroring the four-state DB_state enum from the original C cursor:
// whichever side yielded the current key is the one that advances on
// the next Next call, the other side is left untouched and simply
// re-read. Seek and First reposition both sides.
type State int

const (
	StateInvalid State = iota
	StateEqual
	StatePending
	StatePersist
)

func (s State) String() string {
	switch s {
	case StateEqual:
		return "EQUAL"
	case StatePending:
		return "PENDING"
	case StatePersist:
		return "PERSIST"
	default:
		return "INVALID"
	}
}

// PutFlags control Cursor.Put.
type PutFlags uint

const (
	// NOOVERWRITE fails with ErrKeyExist, returning the existing
	// key/value, if key is already present.
	NOOVERWRITE PutFlags = 1 << iota
)

// Cursor (C6) presents a single ordered stream over the union of a
// transaction's staging index and the persistent-store snapshot it was
// opened against, with staging-index entries shadowing persistent-store
// entries of equal key. A read transaction's cursor only ever has a
// persistent-store side.
type Cursor struct {
	txn    *Txn
	state  State
	closed bool

	hasSI bool // whether this cursor has a staging-index side at all

	siKey     []byte
	siVal     []byte
	siValid   bool
	siDeleted bool

	psCur   *bbolt.Cursor
	psKey   []byte
	psVal   []byte
	psValid bool
}

func newCursor(txn *Txn) (*Cursor, error) {
	b, err := txn.bucket()
	if err != nil {
		return nil, err
	}
	return &Cursor{txn: txn, hasSI: txn.si != nil, psCur: b.Cursor()}, nil
}

func (c *Cursor) close() {
	c.closed = true
	c.psCur = nil
}

func (c *Cursor) checkOpen() error {
	if c.closed {
		return fmt.Errorf("db: cursor closed: %w", ErrInvalid)
	}
	return nil
}

// Seek positions the cursor at key. dir == 0 requires an exact match;
// dir > 0 finds the smallest key >= key; dir < 0 finds the largest key
// <= key.
func (c *Cursor) Seek(key []byte, dir int) ([]byte, []byte, error) {
	if err := c.checkOpen(); err != nil {
		return nil, nil, err
	}
	if dir < -1 || dir > 1 {
		return nil, nil, fmt.Errorf("db: dir must be -1, 0, or 1: %w", ErrInvalid)
	}
	c.seekSI(key, dir)
	c.seekPS(key, dir)
	return c.resolve(dir)
}

// First positions the cursor at the first key in direction dir
// (dir > 0: smallest key; dir < 0: largest key).
func (c *Cursor) First(dir int) ([]byte, []byte, error) {
	if err := c.checkOpen(); err != nil {
		return nil, nil, err
	}
	if dir == 0 {
		return nil, nil, fmt.Errorf("db: dir must be -1 or 1 for First: %w", ErrInvalid)
	}
	c.firstSI(dir)
	c.firstPS(dir)
	return c.resolve(dir)
}

// Next advances the cursor one position in direction dir, re-reading
// (without moving) whichever side did not contribute the prior result.
func (c *Cursor) Next(dir int) ([]byte, []byte, error) {
	if err := c.checkOpen(); err != nil {
		return nil, nil, err
	}
	if dir == 0 {
		return nil, nil, fmt.Errorf("db: dir must be -1 or 1 for Next: %w", ErrInvalid)
	}
	if c.state == StateInvalid {
		return nil, nil, fmt.Errorf("db: cursor has no current position: %w", ErrInvalid)
	}
	if c.hasSI && (c.state == StatePending || c.state == StateEqual) {
		c.advanceSI(dir)
	}
	if c.state == StatePersist || c.state == StateEqual {
		c.advancePS(dir)
	}
	return c.resolve(dir)
}

// Current re-reads the cursor's current position without moving it.
func (c *Cursor) Current() ([]byte, []byte, error) {
	if err := c.checkOpen(); err != nil {
		return nil, nil, err
	}
	switch c.state {
	case StatePersist:
		if !c.psValid {
			return nil, nil, ErrNotFound
		}
		return c.psKey, c.psVal, nil
	case StatePending, StateEqual:
		if !c.siValid || c.siDeleted {
			return nil, nil, ErrNotFound
		}
		return c.siKey, c.siVal, nil
	default:
		return nil, nil, ErrNotFound
	}
}

// Put writes key/val into the transaction's staging index and
// invalidates the cursor's position, mirroring the original's
// behavior of seeking (for NOOVERWRITE) before mutating the pending
// side. Only valid on a read-write transaction.
func (c *Cursor) Put(key, val []byte, flags PutFlags) (existingKey, existingVal []byte, err error) {
	if err := c.checkOpen(); err != nil {
		return nil, nil, err
	}
	if c.txn.mode != ModeReadWrite {
		return nil, nil, fmt.Errorf("db: put on a read-only transaction: %w", ErrAccess)
	}
	if flags&NOOVERWRITE != 0 {
		k, v, serr := c.Seek(key, 0)
		if serr == nil {
			return k, v, fmt.Errorf("%w", ErrKeyExist)
		}
		if !errors.Is(serr, ErrNotFound) {
			return nil, nil, serr
		}
	}
	c.txn.si.put(key, val, false)
	c.state = StateInvalid
	return nil, nil, nil
}

// Del is reserved; the substrate only supports deleting a specific key
// (see DeleteKey), not "the key the cursor currently sits on", because
// a cursor's current position may be on the persistent-store side,
// which has no notion of a pending delete until commit.
func (c *Cursor) Del() error {
	return fmt.Errorf("db: bare cursor delete is reserved, use DeleteKey: %w", ErrInvalid)
}

// DeleteKey writes a tombstone for key into the staging index. The
// tombstone shadows any persistent-store entry for key during
// iteration for the remainder of this transaction and is drained as a
// persistent-store delete at commit. Only valid on a read-write
// transaction.
func (c *Cursor) DeleteKey(key []byte) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if c.txn.mode != ModeReadWrite {
		return fmt.Errorf("db: delete on a read-only transaction: %w", ErrAccess)
	}
	c.txn.si.put(key, nil, true)
	c.state = StateInvalid
	return nil
}

// --- staging-index side ---

func (c *Cursor) seekSI(key []byte, dir int) {
	if !c.hasSI {
		c.siValid = false
		return
	}
	switch {
	case dir == 0:
		it, ok := c.txn.si.get(key)
		c.siValid = ok
		if ok {
			c.siKey, c.siVal, c.siDeleted = it.key, it.val, it.deleted
		}
	case dir > 0:
		it, ok := c.txn.si.seekGE(key)
		c.siValid = ok
		if ok {
			c.siKey, c.siVal, c.siDeleted = it.key, it.val, it.deleted
		}
	default: // dir < 0
		it, ok := c.txn.si.seekGE(key)
		if !ok {
			// nothing >= key: every key is < key, so the answer is the overall max
			it, ok = c.txn.si.max()
		} else if c.txn.env.comparator(it.key, key) != 0 {
			// it.key is the smallest key > pivot: step back one
			it, ok = c.txn.si.prev(it.key)
		}
		c.siValid = ok
		if ok {
			c.siKey, c.siVal, c.siDeleted = it.key, it.val, it.deleted
		}
	}
}

func (c *Cursor) firstSI(dir int) {
	if !c.hasSI {
		c.siValid = false
		return
	}
	var it siItem
	var ok bool
	if dir > 0 {
		it, ok = c.txn.si.min()
	} else {
		it, ok = c.txn.si.max()
	}
	c.siValid = ok
	if ok {
		c.siKey, c.siVal, c.siDeleted = it.key, it.val, it.deleted
	}
}

func (c *Cursor) advanceSI(dir int) {
	if !c.siValid {
		return
	}
	var it siItem
	var ok bool
	if dir > 0 {
		it, ok = c.txn.si.next(c.siKey)
	} else {
		it, ok = c.txn.si.prev(c.siKey)
	}
	c.siValid = ok
	if ok {
		c.siKey, c.siVal, c.siDeleted = it.key, it.val, it.deleted
	} else {
		c.siKey, c.siVal = nil, nil
	}
}

// --- persistent-store side ---

func (c *Cursor) seekPS(key []byte, dir int) {
	k, v := c.psCur.Seek(key)
	switch {
	case dir == 0:
		if k != nil && bytes.Equal(k, key) {
			c.psKey, c.psVal, c.psValid = k, v, true
		} else {
			c.psKey, c.psVal, c.psValid = nil, nil, false
		}
	case dir > 0:
		c.psKey, c.psVal, c.psValid = k, v, k != nil
	default: // dir < 0
		if k == nil {
			// nothing >= key: answer is the overall max
			k, v = c.psCur.Last()
			c.psKey, c.psVal, c.psValid = k, v, k != nil
		} else if !bytes.Equal(k, key) {
			k, v = c.psCur.Prev()
			c.psKey, c.psVal, c.psValid = k, v, k != nil
		} else {
			c.psKey, c.psVal, c.psValid = k, v, true
		}
	}
}

func (c *Cursor) firstPS(dir int) {
	var k, v []byte
	if dir > 0 {
		k, v = c.psCur.First()
	} else {
		k, v = c.psCur.Last()
	}
	c.psKey, c.psVal, c.psValid = k, v, k != nil
}

func (c *Cursor) advancePS(dir int) {
	var k, v []byte
	if dir > 0 {
		k, v = c.psCur.Next()
	} else {
		k, v = c.psCur.Prev()
	}
	c.psKey, c.psVal, c.psValid = k, v, k != nil
}

// --- merge ---

// resolve runs the merge rule and, if the winning entry turns out to be
// a tombstone, keeps advancing in dir until a live entry is found or
// both sides are exhausted. A tombstone is never a visible cursor
// position, it only ever shadows a persistent-store entry.
func (c *Cursor) resolve(dir int) ([]byte, []byte, error) {
	for {
		k, v, tomb := c.merge(dir)
		if c.state == StateInvalid {
			return nil, nil, ErrNotFound
		}
		if !tomb {
			return k, v, nil
		}
		if dir == 0 {
			// an exact-match seek landed on a tombstone: the key is deleted
			c.state = StateInvalid
			return nil, nil, ErrNotFound
		}
		if c.hasSI && (c.state == StatePending || c.state == StateEqual) {
			c.advanceSI(dir)
		}
		if c.state == StatePersist || c.state == StateEqual {
			c.advancePS(dir)
		}
	}
}

// merge applies the four-way tag rule from db_cursor_update: with
// neither side valid the cursor is INVALID; with exactly one side valid
// that side wins outright; with both valid, compare keys (direction
// flips the comparator's sign so "ahead" always means "wins") and a
// non-positive result favors the staging index (EQUAL on a tie,
// PENDING if strictly ahead), a positive result favors the persistent
// store (PERSIST).
func (c *Cursor) merge(dir int) (key, val []byte, tombstone bool) {
	siOK := c.hasSI && c.siValid
	psOK := c.psValid

	switch {
	case !siOK && !psOK:
		c.state = StateInvalid
		return nil, nil, false
	case siOK && !psOK:
		c.state = StatePending
	case !siOK && psOK:
		c.state = StatePersist
	default:
		sign := 1
		if dir < 0 {
			sign = -1
		}
		x := c.txn.env.comparator(c.siKey, c.psKey) * sign
		switch {
		case x < 0:
			c.state = StatePending
		case x == 0:
			c.state = StateEqual
		default:
			c.state = StatePersist
		}
	}

	metrics.CursorStateTotal.WithLabelValues(strings.ToLower(c.state.String())).Inc()

	if c.state == StatePersist {
		return c.psKey, c.psVal, false
	}
	return c.siKey, c.siVal, c.siDeleted
}
