package tabletenv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstore/tablet/errs"
)

func TestLocalCreateWriteOpenRead(t *testing.T) {
	env, err := Local(t.TempDir())
	require.NoError(t, err)

	f, err := env.Create("dir/a.dat")
	require.NoError(t, err)
	n, err := f.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.NoError(t, f.Close())

	rf, err := env.Open("dir/a.dat")
	require.NoError(t, err)
	defer rf.Close()

	size, err := rf.Size()
	require.NoError(t, err)
	require.EqualValues(t, 5, size)

	buf := make([]byte, 5)
	_, err = rf.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
}

func TestLocalOpenMissingReturnsNotFound(t *testing.T) {
	env, err := Local(t.TempDir())
	require.NoError(t, err)

	_, err = env.Open("missing.dat")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestLocalExistsListAndRemove(t *testing.T) {
	env, err := Local(t.TempDir())
	require.NoError(t, err)

	ok, err := env.Exists("layers")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, env.MkdirAll("layers/0000000001"))
	f, err := env.Create("layers/0000000001/col-0.dat")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ok, err = env.Exists("layers/0000000001/col-0.dat")
	require.NoError(t, err)
	require.True(t, ok)

	names, err := env.List("layers")
	require.NoError(t, err)
	require.Equal(t, []string{"0000000001"}, names)

	require.NoError(t, env.Remove("layers/0000000001/col-0.dat"))
	ok, err = env.Exists("layers/0000000001/col-0.dat")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocalRemoveAllAndRename(t *testing.T) {
	env, err := Local(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, env.MkdirAll("staging"))
	f, err := env.Create("staging/col-0.dat")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, env.Rename("staging", "layers/0000000001"))
	ok, err := env.Exists("layers/0000000001/col-0.dat")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = env.Exists("staging")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, env.RemoveAll("layers/0000000001"))
	ok, err = env.Exists("layers/0000000001")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocalListOnMissingDirIsEmptyNotError(t *testing.T) {
	env, err := Local(t.TempDir())
	require.NoError(t, err)

	names, err := env.List("does-not-exist")
	require.NoError(t, err)
	require.Empty(t, names)
}
