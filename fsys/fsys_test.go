package fsys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnebach/nachosfs/common"
	"github.com/arnebach/nachosfs/disk"
	"github.com/arnebach/nachosfs/errs"
)

func newFormatted(t *testing.T, numSectors int) *FileSystem {
	t.Helper()
	dsk := disk.NewMemDisk(numSectors)
	fs, err := Format(dsk)
	require.NoError(t, err)
	return fs
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	fs := newFormatted(t, 256)
	content := []byte("hello, nachosfs")

	require.NoError(fs.Create("/greeting", len(content)))

	id, err := fs.OpenFile("/greeting")
	require.NoError(err)

	n, err := fs.Write(id, content)
	require.NoError(err)
	assert.Equal(len(content), n)

	require.NoError(fs.Seek(id, 0))
	got, err := fs.Read(id, len(content))
	require.NoError(err)
	assert.Equal(content, got)

	require.NoError(fs.CloseFile(id))
}

func TestCreateDuplicateFails(t *testing.T) {
	fs := newFormatted(t, 256)
	require.NoError(t, fs.Create("/a", 10))
	err := fs.Create("/a", 10)
	assert.ErrorIs(t, err, errs.ErrExists)
}

func TestOpenMissingFails(t *testing.T) {
	fs := newFormatted(t, 256)
	_, err := fs.OpenFile("/nope")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestLargeFileCrossesIndirection(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	// Big enough to force a level-1 inode: more than one direct inode's
	// worth of data sectors.
	size := common.MaxSize[0] + common.SectorSize*3
	fs := newFormatted(t, size/common.SectorSize+64)

	require.NoError(fs.Create("/big", size))
	id, err := fs.OpenFile("/big")
	require.NoError(err)

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	n, err := fs.Write(id, data)
	require.NoError(err)
	assert.Equal(size, n)

	require.NoError(fs.Seek(id, 0))
	got, err := fs.Read(id, size)
	require.NoError(err)
	assert.Equal(data, got)
}

func TestHierarchicalCreateAndRecursiveList(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	fs := newFormatted(t, 256)
	require.NoError(fs.Mkdir("/docs"))
	require.NoError(fs.Create("/docs/readme", 5))
	require.NoError(fs.Mkdir("/docs/sub"))
	require.NoError(fs.Create("/docs/sub/nested", 3))
	require.NoError(fs.Create("/top", 1))

	top, err := fs.List("/", false)
	require.NoError(err)
	assert.ElementsMatch([]string{"docs/", "top"}, top)

	all, err := fs.List("/", true)
	require.NoError(err)
	assert.Contains(all, "docs/")
	assert.Contains(all, "  readme")
	assert.Contains(all, "  sub/")
	assert.Contains(all, "    nested")
}

func TestRecursiveRemoveFreesSpace(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	fs := newFormatted(t, 256)
	baseline := fs.bm.NumClear()

	require.NoError(fs.Mkdir("/tree"))
	require.NoError(fs.Create("/tree/a", 20))
	require.NoError(fs.Mkdir("/tree/sub"))
	require.NoError(fs.Create("/tree/sub/b", 30))

	require.NoError(fs.Remove("/tree", true))

	entries, err := fs.List("/", false)
	require.NoError(err)
	assert.Empty(entries)
	assert.Equal(baseline, fs.bm.NumClear(), "every sector consumed by the tree should be returned")
}

func TestNonRecursiveRemoveRejectsDirectory(t *testing.T) {
	fs := newFormatted(t, 256)
	require.NoError(t, fs.Mkdir("/dir"))
	err := fs.Remove("/dir", false)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCreateExhaustsSpace(t *testing.T) {
	fs := newFormatted(t, 40)
	err := fs.Create("/toobig", common.MaxSize[common.LevelLimit-1])
	assert.Error(t, err)
}

func TestNameCollisionAcrossTypesFails(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	fs := newFormatted(t, 256)
	require.NoError(fs.Mkdir("/a"))

	err := fs.Create("/a", 1)
	assert.ErrorIs(err, errs.ErrExists, "create must fail when the name is taken by a directory")

	fs2 := newFormatted(t, 256)
	require.NoError(fs2.Create("/b", 1))

	err = fs2.Mkdir("/b")
	assert.ErrorIs(err, errs.ErrExists, "mkdir must fail when the name is taken by a file")
}

func TestStaleHandleFails(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	fs := newFormatted(t, 256)
	require.NoError(fs.Create("/f", 4))

	id, err := fs.OpenFile("/f")
	require.NoError(err)
	require.NoError(fs.CloseFile(id))

	_, err = fs.Read(id, 1)
	assert.ErrorIs(err, errs.ErrBadHandle, "reading a closed handle must fail")

	_, err = fs.Write(id, []byte("x"))
	assert.ErrorIs(err, errs.ErrBadHandle, "writing a closed handle must fail")

	err = fs.Seek(id, 0)
	assert.ErrorIs(err, errs.ErrBadHandle, "seeking a closed handle must fail")

	err = fs.CloseFile(id)
	assert.ErrorIs(err, errs.ErrBadHandle, "closing an already-closed handle must fail")
}

func TestOutOfRangeHandleFails(t *testing.T) {
	fs := newFormatted(t, 256)

	_, err := fs.Read(FileID(-1), 1)
	assert.ErrorIs(t, err, errs.ErrBadHandle)

	_, err = fs.Read(FileID(common.FileOpenLimit), 1)
	assert.ErrorIs(t, err, errs.ErrBadHandle)
}

func TestOpenFileExhaustsTable(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	fs := newFormatted(t, 256)
	require.NoError(fs.Create("/f", 4))

	for i := 0; i < common.FileOpenLimit; i++ {
		_, err := fs.OpenFile("/f")
		require.NoError(err)
	}

	_, err := fs.OpenFile("/f")
	assert.ErrorIs(err, errs.ErrTooManyOpen, "opening past the table's capacity must fail")
}

func TestPersistAcrossReopen(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	dsk := disk.NewMemDisk(256)
	fs, err := Format(dsk)
	require.NoError(err)
	require.NoError(fs.Create("/persisted", 8))
	id, err := fs.OpenFile("/persisted")
	require.NoError(err)
	_, err = fs.Write(id, []byte("12345678"))
	require.NoError(err)
	require.NoError(fs.CloseFile(id))

	reopened, err := Open(dsk)
	require.NoError(err)
	entries, err := reopened.List("/", false)
	require.NoError(err)
	assert.Equal([]string{"persisted"}, entries)

	id2, err := reopened.OpenFile("/persisted")
	require.NoError(err)
	got, err := reopened.Read(id2, 8)
	require.NoError(err)
	assert.Equal([]byte("12345678"), got)
}
