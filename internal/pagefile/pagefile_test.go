package pagefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempName(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "data.db")
}

func TestCreateOpenClose(t *testing.T) {
	name := tempName(t)
	require.NoError(t, CreatePageFile(name))

	pf, err := OpenPageFile(name)
	require.NoError(t, err)
	require.Equal(t, int64(1), pf.TotalPages())
	require.NoError(t, pf.Close())
}

func TestCreate_FailsIfExists(t *testing.T) {
	name := tempName(t)
	require.NoError(t, CreatePageFile(name))
	err := CreatePageFile(name)
	require.Error(t, err)
}

func TestOpen_FailsIfMissing(t *testing.T) {
	name := tempName(t)
	_, err := OpenPageFile(name)
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestReadBlock_OutOfRange(t *testing.T) {
	name := tempName(t)
	require.NoError(t, CreatePageFile(name))
	pf, err := OpenPageFile(name)
	require.NoError(t, err)
	defer pf.Close()

	buf := make([]byte, PageSize)
	err = pf.ReadBlock(5, buf)
	require.ErrorIs(t, err, ErrOutOfRange)

	err = pf.ReadBlock(-1, buf)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestWriteThenReadBlock(t *testing.T) {
	name := tempName(t)
	require.NoError(t, CreatePageFile(name))
	pf, err := OpenPageFile(name)
	require.NoError(t, err)
	defer pf.Close()

	buf := make([]byte, PageSize)
	buf[0] = 7
	buf[PageSize-1] = 9
	require.NoError(t, pf.WriteBlock(0, buf))

	readBack := make([]byte, PageSize)
	require.NoError(t, pf.ReadBlock(0, readBack))
	require.Equal(t, buf, readBack)
}

func TestAppendEmptyBlock(t *testing.T) {
	name := tempName(t)
	require.NoError(t, CreatePageFile(name))
	pf, err := OpenPageFile(name)
	require.NoError(t, err)
	defer pf.Close()

	require.NoError(t, pf.AppendEmptyBlock())
	require.Equal(t, int64(2), pf.TotalPages())

	buf := make([]byte, PageSize)
	require.NoError(t, pf.ReadBlock(1, buf))
	for _, b := range buf {
		require.Equal(t, byte(0), b)
	}
}

func TestEnsureCapacity(t *testing.T) {
	name := tempName(t)
	require.NoError(t, CreatePageFile(name))
	pf, err := OpenPageFile(name)
	require.NoError(t, err)
	defer pf.Close()

	require.NoError(t, pf.EnsureCapacity(5))
	require.Equal(t, int64(5), pf.TotalPages())

	// Calling again with a smaller k is a no-op.
	require.NoError(t, pf.EnsureCapacity(2))
	require.Equal(t, int64(5), pf.TotalPages())
}

func TestDestroyPageFile(t *testing.T) {
	name := tempName(t)
	require.NoError(t, CreatePageFile(name))
	require.NoError(t, DestroyPageFile(name))

	_, err := os.Stat(name)
	require.True(t, os.IsNotExist(err))
}

func TestDestroyPageFile_Missing(t *testing.T) {
	name := tempName(t)
	err := DestroyPageFile(name)
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestWriteBlock_WrongBufferSize(t *testing.T) {
	name := tempName(t)
	require.NoError(t, CreatePageFile(name))
	pf, err := OpenPageFile(name)
	require.NoError(t, err)
	defer pf.Close()

	err = pf.WriteBlock(0, make([]byte, 10))
	require.Error(t, err)
}
