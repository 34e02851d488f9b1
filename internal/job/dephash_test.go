package job

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDepsStability(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	assert := assert.New(t)

	dir := t.TempDir()
	require.NoError(os.WriteFile(filepath.Join(dir, "a.conf"), []byte("hello"), 0o644))
	require.NoError(os.WriteFile(filepath.Join(dir, "b.conf"), []byte("world"), 0o644))

	h1, err := HashDeps(dir, []string{"a.conf", "b.conf"})
	require.NoError(err)

	h2, err := HashDeps(dir, []string{"a.conf", "b.conf"})
	require.NoError(err)

	assert.Equal(h1, h2, "hashing identical contents twice must be byte-for-byte stable")

	require.NoError(os.WriteFile(filepath.Join(dir, "b.conf"), []byte("WORLD"), 0o644))
	h3, err := HashDeps(dir, []string{"a.conf", "b.conf"})
	require.NoError(err)
	assert.NotEqual(h1, h3, "changed content must change the hash")
}

func TestHashDepsMissingFile(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	dir := t.TempDir()
	_, err := HashDeps(dir, []string{"does-not-exist.conf"})
	require.Error(err)
}

func TestHashDepsOrderMatters(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	assert := assert.New(t)

	dir := t.TempDir()
	require.NoError(os.WriteFile(filepath.Join(dir, "a.conf"), []byte("AA"), 0o644))
	require.NoError(os.WriteFile(filepath.Join(dir, "b.conf"), []byte("BB"), 0o644))

	forward, err := HashDeps(dir, []string{"a.conf", "b.conf"})
	require.NoError(err)

	reverse, err := HashDeps(dir, []string{"b.conf", "a.conf"})
	require.NoError(err)

	assert.NotEqual(forward, reverse)
}
