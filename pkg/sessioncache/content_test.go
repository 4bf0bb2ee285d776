package sessioncache

import (
	"errors"
	"testing"

	"github.com/cuemby/stronglink/pkg/db"
)

func TestGetFileInfoRequiresRDONLY(t *testing.T) {
	env := openTestEnv(t)
	s, err := CreateInternal(nil, 1, nil, nil, 1, WRONLY, "writer")
	if err != nil {
		t.Fatalf("CreateInternal: %v", err)
	}
	if _, err := s.GetFileInfo(env, "hash://example"); !errors.Is(err, db.ErrAccess) {
		t.Fatalf("got %v, want ErrAccess", err)
	}
}

func TestGetFileInfoResolvesLowestMatchingFileID(t *testing.T) {
	env := openTestEnv(t)

	txn, err := db.Begin(env, nil, db.ModeReadWrite, 0)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	uri := "hash://sha256/deadbeef"
	if err := PutFileInfo(txn, uri, FileInfo{FileID: 5, InternalHash: "deadbeef", Type: "text/plain", Size: 11}); err != nil {
		t.Fatalf("PutFileInfo: %v", err)
	}
	if err := PutFileInfo(txn, uri, FileInfo{FileID: 9, InternalHash: "deadbeef-dup", Type: "text/plain", Size: 22}); err != nil {
		t.Fatalf("PutFileInfo: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	s, err := CreateInternal(nil, 1, nil, nil, 1, RDONLY, "reader")
	if err != nil {
		t.Fatalf("CreateInternal: %v", err)
	}
	info, err := s.GetFileInfo(env, uri)
	if err != nil {
		t.Fatalf("GetFileInfo: %v", err)
	}
	if info.FileID != 5 {
		t.Fatalf("got fileID %d, want 5 (lowest matching)", info.FileID)
	}
	if info.Size != 11 {
		t.Fatalf("got size %d, want 11", info.Size)
	}
}

func TestGetFileInfoMissingURI(t *testing.T) {
	env := openTestEnv(t)
	s, err := CreateInternal(nil, 1, nil, nil, 1, RDONLY, "reader")
	if err != nil {
		t.Fatalf("CreateInternal: %v", err)
	}
	if _, err := s.GetFileInfo(env, "hash://nope"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestGetValueForFieldSkipsEmptyValues(t *testing.T) {
	env := openTestEnv(t)

	txn, err := db.Begin(env, nil, db.ModeReadWrite, 0)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	uri := "hash://sha256/abc"
	if err := PutMetaFileValue(txn, uri, 1, "title", ""); err != nil {
		t.Fatalf("PutMetaFileValue: %v", err)
	}
	if err := PutMetaFileValue(txn, uri, 2, "title", "Second Title"); err != nil {
		t.Fatalf("PutMetaFileValue: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	s, err := CreateInternal(nil, 1, nil, nil, 1, RDONLY, "reader")
	if err != nil {
		t.Fatalf("CreateInternal: %v", err)
	}
	value, err := s.GetValueForField(env, uri, "title")
	if err != nil {
		t.Fatalf("GetValueForField: %v", err)
	}
	if value != "Second Title" {
		t.Fatalf("got %q, want %q", value, "Second Title")
	}
}

func TestGetValueForFieldNoMatch(t *testing.T) {
	env := openTestEnv(t)
	s, err := CreateInternal(nil, 1, nil, nil, 1, RDONLY, "reader")
	if err != nil {
		t.Fatalf("CreateInternal: %v", err)
	}
	if _, err := s.GetValueForField(env, "hash://nope", "title"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
