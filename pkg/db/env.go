package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/cuemby/stronglink/pkg/log"
	"github.com/cuemby/stronglink/pkg/metrics"
)

// Flags control Environment.Open.
type Flags uint

const (
	// NOSYNC disables fsync on commit, trading durability for throughput.
	NOSYNC Flags = 1 << iota
	// RDONLY opens the environment refusing all write transactions.
	RDONLY
)

// Environment (C4) owns one open persistent store and hands out
// transactions against it. Exactly one Environment should have a given
// path open at a time; nothing here enforces that across processes.
type Environment struct {
	comparator Comparator

	mu       sync.Mutex
	path     string
	rdonly   bool
	maxFiles int
	ps       *persistentStore

	// commitMu serializes the drain-into-bbolt step of Commit. Begin is
	// never blocked by it: only the brief window between a read-write
	// transaction finishing its work and its staging index landing in
	// the persistent store is serialized.
	commitMu sync.Mutex
}

// NewEnvironment constructs an unopened Environment using
// byte-lexicographic key ordering.
func NewEnvironment() *Environment {
	return &Environment{comparator: DefaultCompare}
}

// SetComparator installs a custom key ordering for the staging index and
// for cursor tie-breaking. It must be called before any transaction is
// begun, since a live transaction's staging index keeps the order it
// was built with while its cursor reads the new comparator. It does NOT
// reorder the persistent store: bbolt buckets are always
// byte-lexicographic, so a comparator that disagrees with
// bytes.Compare over existing keys will produce a merged cursor whose
// PERSIST-side order contradicts its PENDING-side order. Callers that
// need this should keep all existing data and any custom ordering
// compatible with byte-lexicographic order (e.g. fixed-width
// order-preserving integer encodings).
func (e *Environment) SetComparator(cmp Comparator) {
	if cmp == nil {
		return
	}
	e.comparator = cmp
	log.WithComponent("db").Warn().Msg("custom comparator installed: staging index and cursor tie-break only, persistent store iteration stays byte-lexicographic")
}

// Comparator returns the environment's active key comparator.
func (e *Environment) Comparator() Comparator { return e.comparator }

// Open opens or creates the environment's persistent store at path.
func (e *Environment) Open(path string, flags Flags, mode os.FileMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ps != nil {
		return fmt.Errorf("db: environment already open: %w", ErrInvalid)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	// Exercise the tmp-SI-file convention from the original: a throwaway
	// file is created and unlinked immediately to confirm the directory
	// is writable for a journal/staging file before anything durable is
	// touched. Our staging index lives entirely in memory, so nothing
	// persists here, this purely validates the path up front.
	if err := probeWritable(path); err != nil {
		return err
	}

	rdonly := flags&RDONLY != 0
	ps, err := openPersistentStore(filepath.Join(path, "data.db"), mode, flags&NOSYNC != 0)
	if err != nil {
		metrics.RegisterComponent("environment", false, err.Error())
		return err
	}

	e.path = path
	e.rdonly = rdonly
	e.maxFiles = maxOpenFiles()
	e.ps = ps
	metrics.RegisterComponent("environment", true, path)
	log.WithEnv(path).Info().Bool("rdonly", rdonly).Int("max_files", e.maxFiles).Msg("environment opened")
	return nil
}

// Close releases the persistent store handle. Close is idempotent.
func (e *Environment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ps == nil {
		return nil
	}
	err := e.ps.close()
	e.ps = nil
	if err != nil {
		metrics.UpdateComponent("environment", false, err.Error())
	} else {
		metrics.UpdateComponent("environment", false, "closed")
	}
	return err
}

// ReadOnly reports whether the environment was opened with RDONLY.
func (e *Environment) ReadOnly() bool { return e.rdonly }

// Path returns the environment's storage directory.
func (e *Environment) Path() string { return e.path }

func probeWritable(path string) error {
	f, err := os.CreateTemp(path, "tmp.*.si")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func maxOpenFiles() int {
	var rlim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rlim); err == nil && rlim.Cur > 0 {
		return int(rlim.Cur / 3)
	}
	return 100
}
