package db

import (
	"os"

	"go.etcd.io/bbolt"
)

// mainBucket is the single root bucket backing the whole keyspace. The
// spec's single-keyspace invariant is enforced structurally: nothing in
// this package ever opens a second top-level bucket.
var mainBucket = []byte("main")

// persistentStore is the durable, ordered half of the substrate (C2). It
// is a thin contract over bbolt: bbolt's read-only transactions already
// are the point-in-time snapshots this spec requires, and bbolt's
// Cursor already is the seek/first/next iterator this spec requires, so
// persistentStore does not reimplement either, it only owns the handle
// and the bucket convention.
type persistentStore struct {
	db *bbolt.DB
}

func openPersistentStore(path string, mode os.FileMode, nosync bool) (*persistentStore, error) {
	bdb, err := bbolt.Open(path, mode, &bbolt.Options{Timeout: 0})
	if err != nil {
		return nil, classifyPSError(err)
	}
	bdb.NoSync = nosync
	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(mainBucket)
		return err
	})
	if err != nil {
		_ = bdb.Close()
		return nil, classifyPSError(err)
	}
	return &persistentStore{db: bdb}, nil
}

// snapshot pins a point-in-time view of the store by starting a
// read-only bbolt transaction. The returned transaction is the snapshot
// handle; it stays valid until rolled back regardless of concurrent
// writers.
func (p *persistentStore) snapshot() (*bbolt.Tx, error) {
	tx, err := p.db.Begin(false)
	if err != nil {
		return nil, classifyPSError(err)
	}
	return tx, nil
}

// write applies apply atomically against the main bucket. sync controls
// whether bbolt fsyncs the data file before returning; a store opened
// with nosync never fsyncs, whatever sync says. bbolt's NoSync flag is
// database-wide, so write toggles it for the duration of the call and
// restores the previous setting afterward.
func (p *persistentStore) write(sync bool, apply func(b *bbolt.Bucket) error) error {
	prev := p.db.NoSync
	p.db.NoSync = prev || !sync
	defer func() { p.db.NoSync = prev }()

	err := p.db.Update(func(tx *bbolt.Tx) error {
		return apply(tx.Bucket(mainBucket))
	})
	if err != nil {
		return classifyPSError(err)
	}
	return nil
}

func (p *persistentStore) close() error {
	if err := p.db.Close(); err != nil {
		return classifyPSError(err)
	}
	return nil
}
