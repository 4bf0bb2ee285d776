package db

import (
	"errors"
	"testing"
)

func putAll(t *testing.T, txn *Txn, kvs map[string]string) {
	t.Helper()
	for k, v := range kvs {
		if err := txn.Put([]byte(k), []byte(v), 0); err != nil {
			t.Fatalf("Put(%q): %v", k, err)
		}
	}
}

func TestCursorSeekExactAndRange(t *testing.T) {
	env := openTestEnv(t)
	seed, _ := Begin(env, nil, ModeReadWrite, 0)
	putAll(t, seed, map[string]string{"b": "2", "d": "4", "f": "6"})
	if err := seed.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rtxn, err := Begin(env, nil, ModeRead, 0)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer rtxn.Abort()
	cur, err := rtxn.Cursor()
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}

	if k, v, err := cur.Seek([]byte("d"), 0); err != nil || string(k) != "d" || string(v) != "4" {
		t.Fatalf("exact Seek(d): k=%q v=%q err=%v", k, v, err)
	}
	if k, _, err := cur.Seek([]byte("c"), 0); !errors.Is(err, ErrNotFound) || k != nil {
		t.Fatalf("exact Seek(c) should miss: k=%q err=%v", k, err)
	}
	if k, _, err := cur.Seek([]byte("c"), +1); err != nil || string(k) != "d" {
		t.Fatalf("forward Seek(c): k=%q err=%v", k, err)
	}
	if k, _, err := cur.Seek([]byte("c"), -1); err != nil || string(k) != "b" {
		t.Fatalf("backward Seek(c): k=%q err=%v", k, err)
	}
	if k, _, err := cur.Seek([]byte("z"), +1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("forward Seek(z) should miss past end: k=%q err=%v", k, err)
	}
	if k, _, err := cur.Seek([]byte("z"), -1); err != nil || string(k) != "f" {
		t.Fatalf("backward Seek(z) should land on max: k=%q err=%v", k, err)
	}
	if k, _, err := cur.Seek([]byte("a"), -1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("backward Seek(a) should miss before start: k=%q err=%v", k, err)
	}
}

func TestCursorForwardAndBackwardIteration(t *testing.T) {
	env := openTestEnv(t)
	seed, _ := Begin(env, nil, ModeReadWrite, 0)
	putAll(t, seed, map[string]string{"a": "1", "b": "2", "c": "3"})
	if err := seed.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rtxn, _ := Begin(env, nil, ModeRead, 0)
	defer rtxn.Abort()
	cur, _ := rtxn.Cursor()

	var got []string
	k, _, err := cur.First(+1)
	for err == nil {
		got = append(got, string(k))
		k, _, err = cur.Next(+1)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("forward iteration ended with %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	got = nil
	k, _, err = cur.First(-1)
	for err == nil {
		got = append(got, string(k))
		k, _, err = cur.Next(-1)
	}
	want = []string{"c", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestCursorMergesPendingAheadOfPersist(t *testing.T) {
	env := openTestEnv(t)
	seed, _ := Begin(env, nil, ModeReadWrite, 0)
	putAll(t, seed, map[string]string{"b": "persisted"})
	if err := seed.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	wtxn, err := Begin(env, nil, ModeReadWrite, 0)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer wtxn.Abort()
	if err := wtxn.Put([]byte("a"), []byte("pending"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}

	cur, err := wtxn.Cursor()
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	k, v, err := cur.First(+1)
	if err != nil || string(k) != "a" || string(v) != "pending" {
		t.Fatalf("First should yield pending entry first: k=%q v=%q err=%v", k, v, err)
	}
	k, v, err = cur.Next(+1)
	if err != nil || string(k) != "b" || string(v) != "persisted" {
		t.Fatalf("Next should yield persisted entry second: k=%q v=%q err=%v", k, v, err)
	}
	if _, _, err := cur.Next(+1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
}

func TestCursorPendingOverridesPersistedSameKey(t *testing.T) {
	env := openTestEnv(t)
	seed, _ := Begin(env, nil, ModeReadWrite, 0)
	putAll(t, seed, map[string]string{"a": "old"})
	if err := seed.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	wtxn, _ := Begin(env, nil, ModeReadWrite, 0)
	defer wtxn.Abort()
	if err := wtxn.Put([]byte("a"), []byte("new"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	cur, _ := wtxn.Cursor()
	k, v, err := cur.Seek([]byte("a"), 0)
	if err != nil || string(k) != "a" || string(v) != "new" {
		t.Fatalf("k=%q v=%q err=%v, want a/new", k, v, err)
	}
}

func TestCursorPutNoOverwriteReturnsExisting(t *testing.T) {
	env := openTestEnv(t)
	wtxn, err := Begin(env, nil, ModeReadWrite, 0)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer wtxn.Abort()
	cur, err := wtxn.Cursor()
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	if _, _, err := cur.Put([]byte("a"), []byte("1"), 0); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	existingKey, existingVal, err := cur.Put([]byte("a"), []byte("2"), NOOVERWRITE)
	if !errors.Is(err, ErrKeyExist) {
		t.Fatalf("expected ErrKeyExist, got %v", err)
	}
	if string(existingKey) != "a" || string(existingVal) != "1" {
		t.Fatalf("expected existing a/1, got %q/%q", existingKey, existingVal)
	}
}

func TestCursorDeleteKeyShadowsAndDrains(t *testing.T) {
	env := openTestEnv(t)
	seed, _ := Begin(env, nil, ModeReadWrite, 0)
	putAll(t, seed, map[string]string{"a": "1", "b": "2"})
	if err := seed.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	wtxn, err := Begin(env, nil, ModeReadWrite, 0)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	cur, err := wtxn.Cursor()
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	if err := cur.DeleteKey([]byte("a")); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}

	// within the same transaction, the deleted key must not surface during iteration
	k, v, err := cur.First(+1)
	if err != nil || string(k) != "b" || string(v) != "2" {
		t.Fatalf("expected deleted key to be skipped, got k=%q v=%q err=%v", k, v, err)
	}
	if err := wtxn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rtxn, _ := Begin(env, nil, ModeRead, 0)
	defer rtxn.Abort()
	if _, err := rtxn.Get([]byte("a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a to be deleted after commit, got %v", err)
	}
}

func TestCursorDelIsReserved(t *testing.T) {
	env := openTestEnv(t)
	wtxn, _ := Begin(env, nil, ModeReadWrite, 0)
	defer wtxn.Abort()
	cur, _ := wtxn.Cursor()
	if err := cur.Del(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
}
