package db

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// NextID returns the next value of the named auto-increment sequence
// within txn, which must be a read-write transaction. The sequence's
// current value is stored as an ordinary 8-byte big-endian counter
// under seqKey in the same keyspace as everything else, and goes
// through the same staging index and commit drain as any other write —
// there is no separate ID allocator, mirroring db_next_id allocating
// through a plain read-modify-write inside the caller's transaction.
func NextID(txn *Txn, seqKey []byte) (uint64, error) {
	if txn.mode != ModeReadWrite {
		return 0, fmt.Errorf("db: NextID requires a read-write transaction: %w", ErrInvalid)
	}
	var next uint64 = 1
	cur, err := txn.Get(seqKey)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	if err == nil {
		if len(cur) != 8 {
			return 0, fmt.Errorf("db: corrupt sequence counter: %w", ErrPanic)
		}
		next = binary.BigEndian.Uint64(cur) + 1
		if next == 0 {
			return 0, fmt.Errorf("db: sequence exhausted: %w", ErrAccess)
		}
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	if err := txn.Put(seqKey, buf[:], 0); err != nil {
		return 0, err
	}
	return next, nil
}
