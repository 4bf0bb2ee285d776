package sessioncache

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cuemby/stronglink/pkg/db"
	"github.com/cuemby/stronglink/pkg/keycodec"
)

// FileInfo is the minimal file record GetFileInfo exposes. The blob
// store and its on-disk hash-to-path layout are out of scope here, only
// the index lookup that would feed one is implemented.
type FileInfo struct {
	FileID       uint64
	InternalHash string
	Type         string
	Size         uint64
}

const (
	uriFileIDPrefixTag    = "idx:urifid:"
	targetURIMetaFileTag  = "idx:turimf:"
	metaFileFieldValueTag = "idx:mffv:"
	fileKeyTag            = "file:"
)

func fileKey(fileID uint64) []byte {
	return keycodec.AppendUint64([]byte(fileKeyTag), fileID)
}

func uriFileIDPrefix(uri string) []byte {
	return keycodec.AppendString([]byte(uriFileIDPrefixTag), uri)
}

func targetURIMetaFileIDPrefix(uri string) []byte {
	return keycodec.AppendString([]byte(targetURIMetaFileTag), uri)
}

func metaFileIDFieldPrefix(metaFileID uint64, field string) []byte {
	buf := keycodec.AppendUint64([]byte(metaFileFieldValueTag), metaFileID)
	return keycodec.AppendString(buf, field)
}

func packFile(f FileInfo) []byte {
	var buf []byte
	buf = keycodec.AppendString(buf, f.InternalHash)
	buf = keycodec.AppendString(buf, f.Type)
	buf = keycodec.AppendUint64(buf, f.Size)
	return buf
}

func unpackFile(fileID uint64, buf []byte) (FileInfo, error) {
	f := FileInfo{FileID: fileID}
	var err error
	if f.InternalHash, buf, err = keycodec.ReadString(buf); err != nil {
		return f, fmt.Errorf("sessioncache: corrupt file record: %w", db.ErrPanic)
	}
	if f.Type, buf, err = keycodec.ReadString(buf); err != nil {
		return f, fmt.Errorf("sessioncache: corrupt file record: %w", db.ErrPanic)
	}
	if f.Size, _, err = keycodec.ReadUint64(buf); err != nil {
		return f, fmt.Errorf("sessioncache: corrupt file record: %w", db.ErrPanic)
	}
	return f, nil
}

// PutFileInfo stores a file's index entries: the file record itself and
// the URI-to-fileID lookup entry a later GetFileInfo resolves. It is the
// write-side counterpart GetFileInfo assumes exists; the spec describes
// only the read path, this is the minimal glue needed to exercise it.
func PutFileInfo(txn *db.Txn, uri string, f FileInfo) error {
	if err := txn.Put(fileKey(f.FileID), packFile(f), 0); err != nil {
		return err
	}
	key := append(uriFileIDPrefix(uri), keycodec.AppendUint64(nil, f.FileID)...)
	return txn.Put(key, nil, 0)
}

// GetFileInfo resolves uri to its file record via a private read-only
// transaction, mirroring SLNSessionGetFileInfo: it requires RDONLY and
// scans the URI-and-fileID index forward from uri's prefix, taking the
// first (lowest fileID) match.
func (s *Session) GetFileInfo(env *db.Environment, uri string) (FileInfo, error) {
	var info FileInfo
	if !s.HasPermission(RDONLY) {
		return info, db.ErrAccess
	}
	if uri == "" {
		return info, fmt.Errorf("sessioncache: empty URI: %w", db.ErrInvalid)
	}

	txn, err := db.Begin(env, nil, db.ModeRead, 0)
	if err != nil {
		return info, err
	}
	defer txn.Abort()

	cur, err := txn.Cursor()
	if err != nil {
		return info, err
	}

	prefix := uriFileIDPrefix(uri)
	k, _, err := cur.Seek(prefix, +1)
	if err != nil {
		return info, err
	}
	if !bytes.HasPrefix(k, prefix) {
		return info, db.ErrNotFound
	}

	fileID, _, err := keycodec.ReadUint64(k[len(prefix):])
	if err != nil {
		return info, fmt.Errorf("sessioncache: corrupt index entry: %w", db.ErrPanic)
	}

	fv, err := txn.Get(fileKey(fileID))
	if err != nil {
		return info, err
	}
	return unpackFile(fileID, fv)
}

// GetValueForField resolves the first non-empty value stored for field
// across every meta-file targeting fileURI, mirroring
// SLNSessionGetValueForField's nested range scan: an outer scan over
// meta-files targeting the URI, and for each, an inner scan over that
// meta-file's (field, value) pairs, returning on the first non-empty
// value found.
func (s *Session) GetValueForField(env *db.Environment, fileURI, field string) (string, error) {
	if !s.HasPermission(RDONLY) {
		return "", db.ErrAccess
	}
	if field == "" {
		return "", fmt.Errorf("sessioncache: empty field: %w", db.ErrInvalid)
	}

	txn, err := db.Begin(env, nil, db.ModeRead, 0)
	if err != nil {
		return "", err
	}
	defer txn.Abort()

	metaCur, err := txn.OpenCursor()
	if err != nil {
		return "", err
	}
	valCur, err := txn.OpenCursor()
	if err != nil {
		return "", err
	}

	metaPrefix := targetURIMetaFileIDPrefix(fileURI)
	mk, _, err := metaCur.Seek(metaPrefix, +1)
	for err == nil && bytes.HasPrefix(mk, metaPrefix) {
		metaFileID, _, derr := keycodec.ReadUint64(mk[len(metaPrefix):])
		if derr != nil {
			return "", fmt.Errorf("sessioncache: corrupt index entry: %w", db.ErrPanic)
		}

		valPrefix := metaFileIDFieldPrefix(metaFileID, field)
		vk, _, verr := valCur.Seek(valPrefix, +1)
		for verr == nil && bytes.HasPrefix(vk, valPrefix) {
			value, _, derr := keycodec.ReadString(vk[len(valPrefix):])
			if derr != nil {
				return "", fmt.Errorf("sessioncache: corrupt index entry: %w", db.ErrPanic)
			}
			if value != "" {
				return value, nil
			}
			vk, _, verr = valCur.Next(+1)
		}
		if verr != nil && !errors.Is(verr, db.ErrNotFound) {
			return "", verr
		}

		mk, _, err = metaCur.Next(+1)
	}
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return "", err
	}
	return "", db.ErrNotFound
}

// PutMetaFileValue stores a single (field, value) pair for metaFileID
// and indexes it as targeting fileURI. Write-side glue for
// GetValueForField, analogous to PutFileInfo.
func PutMetaFileValue(txn *db.Txn, fileURI string, metaFileID uint64, field, value string) error {
	targetKey := append(targetURIMetaFileIDPrefix(fileURI), keycodec.AppendUint64(nil, metaFileID)...)
	if err := txn.Put(targetKey, nil, 0); err != nil {
		return err
	}
	valKey := append(metaFileIDFieldPrefix(metaFileID, field), keycodec.AppendString(nil, value)...)
	return txn.Put(valKey, nil, 0)
}
