package hashutil_test

import (
	"testing"

	"github.com/fri-wier/besela/pkg/hashutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashBytesSha256(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

	got, err := hashutil.HashBytes([]byte("abc"), hashutil.HashAlgoSHA256)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestHashBytesUnsupportedAlgo(t *testing.T) {
	_, err := hashutil.HashBytes([]byte("abc"), "md5")
	assert.Error(t, err)
}

func TestPageHashMatchesSha256(t *testing.T) {
	body := []byte("<html><body>hello</body></html>")

	viaAlgo, err := hashutil.HashBytes(body, hashutil.HashAlgoSHA256)
	require.NoError(t, err)
	assert.Equal(t, viaAlgo, hashutil.PageHash(body))
}

func TestPageHashDeterministic(t *testing.T) {
	body := []byte("same bytes in, same hash out")
	assert.Equal(t, hashutil.PageHash(body), hashutil.PageHash(body))
	assert.NotEqual(t, hashutil.PageHash(body), hashutil.PageHash([]byte("different")))
}

func TestShortDigestLength(t *testing.T) {
	assert.Len(t, hashutil.ShortDigest([]byte("anything")), 12)
}
