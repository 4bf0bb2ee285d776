package db

import (
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

// Sentinel errors satisfy errors.Is and form the public error taxonomy
// for the storage substrate. Callers should branch on these with
// errors.Is rather than on Code, which exists only for wire transport.
var (
	ErrNotFound = errors.New("db: not found")
	ErrKeyExist = errors.New("db: key already exists")
	ErrInvalid  = errors.New("db: invalid argument")
	ErrAccess   = errors.New("db: access denied")
	ErrNoMem    = errors.New("db: out of memory")
	ErrPanic    = errors.New("db: invariant violation")
	ErrIO       = errors.New("db: i/o error")
)

// Code is the stable numeric wire code for an error, for callers that
// need to serialize a result across a protocol boundary.
type Code int

const (
	OK       Code = 0
	NOTFOUND Code = -1
	KEYEXIST Code = -2
	EINVAL   Code = -3
	EACCES   Code = -4
	ENOMEM   Code = -5
	PANIC    Code = -6
	EIO      Code = -7
)

// ErrCode maps err to its wire code. Unrecognized non-nil errors map to EIO.
func ErrCode(err error) Code {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ErrNotFound):
		return NOTFOUND
	case errors.Is(err, ErrKeyExist):
		return KEYEXIST
	case errors.Is(err, ErrInvalid):
		return EINVAL
	case errors.Is(err, ErrAccess):
		return EACCES
	case errors.Is(err, ErrNoMem):
		return ENOMEM
	case errors.Is(err, ErrPanic):
		return PANIC
	default:
		return EIO
	}
}

// classifyPSError folds a raw bbolt error into the taxonomy above. bbolt
// doesn't distinguish disk-full from corruption the way the original's
// LevelDB status strings did, so this is a best-effort mapping.
func classifyPSError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, bbolt.ErrDatabaseNotOpen), errors.Is(err, bbolt.ErrDatabaseOpen):
		return fmt.Errorf("%w: %v", ErrIO, err)
	case errors.Is(err, bbolt.ErrTxNotWritable), errors.Is(err, bbolt.ErrTxClosed), errors.Is(err, bbolt.ErrTimeout):
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	case errors.Is(err, bbolt.ErrBucketNotFound), errors.Is(err, bbolt.ErrIncompatibleValue), errors.Is(err, bbolt.ErrBucketExists):
		return fmt.Errorf("%w: %v", ErrPanic, err)
	default:
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
}
