package db

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"

	"github.com/cuemby/stronglink/pkg/log"
	"github.com/cuemby/stronglink/pkg/metrics"
)

// Mode selects whether a Txn may write.
type Mode int

const (
	ModeRead Mode = iota
	ModeReadWrite
)

func (m Mode) label() string {
	if m == ModeReadWrite {
		return "read_write"
	}
	return "read"
}

// Txn (C5) is a snapshot-isolated transaction against an Environment.
// A read-write Txn accumulates writes in its own staging index and only
// touches the persistent store once, at Commit. A read Txn never
// allocates a staging index at all.
type Txn struct {
	env    *Environment
	parent *Txn
	mode   Mode
	flags  Flags

	psTx *bbolt.Tx // the pinned read-only snapshot; nil after Reset or release
	si   *stagingIndex

	cursor *Cursor // the implicit default cursor, created lazily

	begun time.Time // when Begin returned this Txn, for TxnDuration

	ended int32 // atomic: 0 live, 1 committed or aborted
}

// Begin starts a transaction against env. parent is non-nil only for a
// nested transaction; Commit rejects any transaction with a parent,
// read or read-write (see Commit).
func Begin(env *Environment, parent *Txn, mode Mode, flags Flags) (*Txn, error) {
	if env == nil {
		return nil, fmt.Errorf("db: nil environment: %w", ErrInvalid)
	}
	env.mu.Lock()
	ps := env.ps
	env.mu.Unlock()
	if ps == nil {
		return nil, fmt.Errorf("db: environment not open: %w", ErrInvalid)
	}
	if mode == ModeReadWrite && env.rdonly {
		return nil, fmt.Errorf("db: environment opened read-only: %w", ErrAccess)
	}

	psTx, err := ps.snapshot()
	if err != nil {
		return nil, err
	}

	t := &Txn{env: env, parent: parent, mode: mode, flags: flags, psTx: psTx, begun: time.Now()}
	if mode == ModeReadWrite {
		t.si = newStagingIndex(env.comparator)
	}
	metrics.TxnBegunTotal.WithLabelValues(mode.label()).Inc()
	return t, nil
}

func (t *Txn) bucket() (*bbolt.Bucket, error) {
	if t.psTx == nil {
		return nil, fmt.Errorf("db: transaction has no active snapshot: %w", ErrInvalid)
	}
	b := t.psTx.Bucket(mainBucket)
	if b == nil {
		return nil, fmt.Errorf("db: main bucket missing: %w", ErrPanic)
	}
	return b, nil
}

// GetFlags returns the flags the transaction was begun with.
func (t *Txn) GetFlags() Flags { return t.flags }

// Mode returns ModeRead or ModeReadWrite.
func (t *Txn) Mode() Mode { return t.mode }

// Cmp exposes the environment's active comparator to callers building
// composite keys who need to reason about ordering directly.
func (t *Txn) Cmp(a, b []byte) int { return t.env.comparator(a, b) }

// Cursor returns the transaction's implicit default cursor, creating it
// on first use. Repeated calls return the same cursor.
func (t *Txn) Cursor() (*Cursor, error) {
	if atomic.LoadInt32(&t.ended) != 0 {
		return nil, fmt.Errorf("db: transaction already ended: %w", ErrInvalid)
	}
	if t.cursor != nil {
		return t.cursor, nil
	}
	c, err := newCursor(t)
	if err != nil {
		return nil, err
	}
	t.cursor = c
	return c, nil
}

// OpenCursor creates an additional cursor independent of the
// transaction's implicit default one. Callers that need more than one
// position into the same transaction (e.g. a nested range scan) use
// this instead of Cursor.
func (t *Txn) OpenCursor() (*Cursor, error) {
	if atomic.LoadInt32(&t.ended) != 0 {
		return nil, fmt.Errorf("db: transaction already ended: %w", ErrInvalid)
	}
	return newCursor(t)
}

// Get is a point read through the transaction's default cursor.
func (t *Txn) Get(key []byte) ([]byte, error) {
	c, err := t.Cursor()
	if err != nil {
		return nil, err
	}
	_, v, err := c.Seek(key, 0)
	return v, err
}

// Put is a point write through the transaction's default cursor.
func (t *Txn) Put(key, val []byte, flags PutFlags) error {
	c, err := t.Cursor()
	if err != nil {
		return err
	}
	_, _, err = c.Put(key, val, flags)
	return err
}

// Commit finalizes the transaction. A read transaction just releases
// its snapshot. A read-write transaction drains its staging index into
// one bbolt batch write, in comparator order, under the environment's
// commit lock; Begin is never blocked by this, only the drain itself
// serializes against other committers. Last writer to commit wins on
// any key both touched.
func (t *Txn) Commit() error {
	if !atomic.CompareAndSwapInt32(&t.ended, 0, 1) {
		return fmt.Errorf("db: transaction already ended: %w", ErrInvalid)
	}
	defer func() { metrics.TxnDuration.Observe(time.Since(t.begun).Seconds()) }()

	if t.parent != nil {
		t.release()
		return fmt.Errorf("db: committing a nested read-write transaction is unsupported: %w", ErrPanic)
	}
	if t.mode == ModeRead {
		t.release()
		metrics.TxnCommittedTotal.WithLabelValues(t.mode.label()).Inc()
		return nil
	}

	t.env.commitMu.Lock()
	defer t.env.commitMu.Unlock()

	commitTimer := metrics.NewTimer()
	err := t.env.ps.write(t.flags&NOSYNC == 0, func(b *bbolt.Bucket) error {
		var drainErr error
		t.si.ascend(func(it siItem) bool {
			if it.deleted {
				if err := b.Delete(it.key); err != nil {
					drainErr = err
					return false
				}
				return true
			}
			if err := b.Put(it.key, it.val); err != nil {
				drainErr = err
				return false
			}
			return true
		})
		return drainErr
	})
	commitTimer.ObserveDuration(metrics.CommitDuration)

	n := t.si.len()
	t.release()
	if err != nil {
		return err
	}
	metrics.StagingIndexSize.Observe(float64(n))
	metrics.TxnCommittedTotal.WithLabelValues(t.mode.label()).Inc()
	log.WithComponent("db").Debug().Int("writes", n).Msg("transaction committed")
	return nil
}

// Abort discards the transaction and releases its snapshot. Abort is
// idempotent and safe to call after Commit has already ended the
// transaction (it becomes a no-op).
func (t *Txn) Abort() error {
	if !atomic.CompareAndSwapInt32(&t.ended, 0, 1) {
		return nil
	}
	t.release()
	metrics.TxnAbortedTotal.WithLabelValues(t.mode.label()).Inc()
	metrics.TxnDuration.Observe(time.Since(t.begun).Seconds())
	return nil
}

func (t *Txn) release() {
	if t.cursor != nil {
		t.cursor.close()
		t.cursor = nil
	}
	if t.psTx != nil {
		_ = t.psTx.Rollback()
		t.psTx = nil
	}
	t.si = nil
}

// Reset releases a read transaction's snapshot while keeping the Txn
// shell alive for a later Renew. Only valid on read transactions.
func (t *Txn) Reset() error {
	if t.mode != ModeRead {
		return fmt.Errorf("db: reset is only valid on a read transaction: %w", ErrInvalid)
	}
	if t.cursor != nil {
		t.cursor.close()
		t.cursor = nil
	}
	if t.psTx != nil {
		_ = t.psTx.Rollback()
		t.psTx = nil
	}
	return nil
}

// Renew re-acquires a fresh snapshot for a transaction previously
// passed to Reset, without the cost of a new Txn allocation.
func (t *Txn) Renew() error {
	if t.mode != ModeRead {
		return fmt.Errorf("db: renew is only valid on a read transaction: %w", ErrInvalid)
	}
	if t.psTx != nil {
		return fmt.Errorf("db: transaction already holds a snapshot: %w", ErrInvalid)
	}
	psTx, err := t.env.ps.snapshot()
	if err != nil {
		return err
	}
	t.psTx = psTx
	return nil
}
