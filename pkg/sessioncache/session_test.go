package sessioncache

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInternalRejectsZeroMode(t *testing.T) {
	_, err := CreateInternal(nil, 1, nil, nil, 0, 0, "alice")
	require.Error(t, err)
}

func TestCreateInternalDerivesEncKeyFromRawKey(t *testing.T) {
	raw := []byte("0123456789abcdef0123456789abcdef")
	s, err := CreateInternal(nil, 1, raw, nil, 7, RDONLY, "alice")
	require.NoError(t, err)

	want := sha256.Sum256(raw)
	assert.Equal(t, 0, s.SessionKeyCmp(want[:]))
	assert.NotEqual(t, 0, s.SessionKeyCmp([]byte("not the right key at all........")))
}

func TestNullSessionHasNoPermissions(t *testing.T) {
	var s *Session
	assert.False(t, s.HasPermission(RDONLY))
	assert.Equal(t, uint64(0), s.UserID())
	assert.Equal(t, -1, s.SessionKeyCmp([]byte("anything")))
}

func TestHasPermissionRequiresEveryBitInMask(t *testing.T) {
	s, err := CreateInternal(nil, 1, nil, nil, 1, RDONLY, "bob")
	require.NoError(t, err)
	assert.True(t, s.HasPermission(RDONLY))
	assert.False(t, s.HasPermission(RDWR))
	assert.False(t, s.HasPermission(ADMIN))
}

func TestReleaseZeroizesOnLastReference(t *testing.T) {
	raw := []byte("0123456789abcdef0123456789abcdef")
	s, err := CreateInternal(nil, 1, raw, nil, 7, RDONLY, "alice")
	require.NoError(t, err)

	s2 := s.Retain()
	s.Release()
	assert.Equal(t, "alice", s2.Username(), "session should survive until the second reference is released")

	s2.Release()
	assert.Equal(t, "", s2.Username(), "session identity should be cleared once refcount reaches zero")
}

func TestCopyCookieRoundTripsThroughParseCookie(t *testing.T) {
	raw := []byte("0123456789abcdef0123456789abcdef")
	s, err := CreateInternal(nil, 42, raw, nil, 7, RDONLY, "alice")
	require.NoError(t, err)

	cookie, ok := s.CopyCookie()
	require.True(t, ok)

	id, key, err := ParseCookie(cookie)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, raw, key)
}

func TestCopyCookieFalseWithoutRawKey(t *testing.T) {
	enc := sha256.Sum256([]byte("whatever"))
	s, err := CreateInternal(nil, 1, nil, enc[:], 1, RDONLY, "alice")
	require.NoError(t, err)

	_, ok := s.CopyCookie()
	assert.False(t, ok)
}

func TestParseCookieRejectsMalformedInput(t *testing.T) {
	for _, bad := range []string{"", "nope", "s=notanumber:abc", "s=1:tooshort"} {
		_, _, err := ParseCookie(bad)
		assert.Error(t, err, bad)
	}
}
