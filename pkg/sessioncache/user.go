package sessioncache

import (
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cuemby/stronglink/pkg/db"
	"github.com/cuemby/stronglink/pkg/keycodec"
	"github.com/cuemby/stronglink/pkg/metrics"
)

const (
	usernameMin = 2
	usernameMax = 32
	passwordMin = 0
	passwordMax = 72

	// bcryptCost matches the original's crypt_gensalt_ra("$2a$", 13, ...).
	bcryptCost = 13
)

var userIDSeqKey = []byte("seq:user")

// UserRecord is the durable shape of a user row.
type UserRecord struct {
	Username     string
	PassHash     string
	Mode         Mode
	ParentUserID uint64
	CreatedAt    time.Time
}

func usernameKey(username string) []byte {
	return keycodec.AppendString([]byte("idx:user:name:"), username)
}

func userKey(userID uint64) []byte {
	return keycodec.AppendUint64([]byte("user:"), userID)
}

func packUser(u UserRecord) []byte {
	var buf []byte
	buf = keycodec.AppendString(buf, u.Username)
	buf = keycodec.AppendString(buf, u.PassHash)
	buf = keycodec.AppendUint64(buf, uint64(u.Mode))
	buf = keycodec.AppendUint64(buf, u.ParentUserID)
	buf = keycodec.AppendUint64(buf, uint64(u.CreatedAt.Unix()))
	return buf
}

func unpackUser(buf []byte) (UserRecord, error) {
	var u UserRecord
	var err error
	if u.Username, buf, err = keycodec.ReadString(buf); err != nil {
		return u, fmt.Errorf("sessioncache: corrupt user record: %w", db.ErrPanic)
	}
	if u.PassHash, buf, err = keycodec.ReadString(buf); err != nil {
		return u, fmt.Errorf("sessioncache: corrupt user record: %w", db.ErrPanic)
	}
	var m uint64
	if m, buf, err = keycodec.ReadUint64(buf); err != nil {
		return u, fmt.Errorf("sessioncache: corrupt user record: %w", db.ErrPanic)
	}
	u.Mode = Mode(m)
	if u.ParentUserID, buf, err = keycodec.ReadUint64(buf); err != nil {
		return u, fmt.Errorf("sessioncache: corrupt user record: %w", db.ErrPanic)
	}
	var ts uint64
	if ts, _, err = keycodec.ReadUint64(buf); err != nil {
		return u, fmt.Errorf("sessioncache: corrupt user record: %w", db.ErrPanic)
	}
	u.CreatedAt = time.Unix(int64(ts), 0).UTC()
	return u, nil
}

// CreateUser creates username/password under this repository's
// configured registration mode intersected with the caller's own mode,
// mirroring SLNSessionCreateUser delegating to the *Internal form with
// the repo's registration mode as modeUnsafe.
func (s *Session) CreateUser(txn *db.Txn, username, password string) (uint64, error) {
	if s == nil {
		return 0, fmt.Errorf("sessioncache: the null session cannot create users: %w", db.ErrAccess)
	}
	return s.CreateUserInternal(txn, username, password, s.cache.registrationMode)
}

// CreateUserInternal creates username/password with mode equal to
// modeUnsafe intersected with the caller session's own mode (so a
// session can never mint a user with permissions it doesn't itself
// hold), parented to the caller's user ID, mirroring
// SLNSessionCreateUserInternal.
func (s *Session) CreateUserInternal(txn *db.Txn, username, password string, modeUnsafe Mode) (uint64, error) {
	if s == nil || txn == nil {
		return 0, fmt.Errorf("sessioncache: nil session or transaction: %w", db.ErrInvalid)
	}
	if l := len(username); l < usernameMin || l > usernameMax {
		return 0, fmt.Errorf("sessioncache: username length %d outside [%d,%d]: %w", l, usernameMin, usernameMax, db.ErrInvalid)
	}
	if l := len(password); l < passwordMin || l > passwordMax {
		return 0, fmt.Errorf("sessioncache: password length %d outside [%d,%d]: %w", l, passwordMin, passwordMax, db.ErrInvalid)
	}

	mode := modeUnsafe & s.mode
	if mode == 0 {
		return 0, fmt.Errorf("sessioncache: caller's mode does not permit the requested registration mode: %w", db.ErrInvalid)
	}

	userID, err := db.NextID(txn, userIDSeqKey)
	if err != nil {
		return 0, err
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", db.ErrNoMem, err)
	}

	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], userID)
	if err := txn.Put(usernameKey(username), idBuf[:], db.NOOVERWRITE); err != nil {
		return 0, err
	}

	rec := UserRecord{
		Username:     username,
		PassHash:     string(passHash),
		Mode:         mode,
		ParentUserID: s.userID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := txn.Put(userKey(userID), packUser(rec), db.NOOVERWRITE); err != nil {
		return 0, err
	}
	metrics.UsersCreatedTotal.Inc()
	return userID, nil
}

// LookupUser reads a user's durable record by ID.
func LookupUser(txn *db.Txn, userID uint64) (UserRecord, error) {
	v, err := txn.Get(userKey(userID))
	if err != nil {
		return UserRecord{}, err
	}
	return unpackUser(v)
}

// LookupUserID resolves a username to its user ID.
func LookupUserID(txn *db.Txn, username string) (uint64, error) {
	v, err := txn.Get(usernameKey(username))
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("sessioncache: corrupt username index entry: %w", db.ErrPanic)
	}
	return binary.BigEndian.Uint64(v), nil
}

// CheckPassword reports whether password matches the bcrypt hash in rec.
func CheckPassword(rec UserRecord, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(rec.PassHash), []byte(password)) == nil
}
