package inode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnebach/nachosfs/bitmap"
	"github.com/arnebach/nachosfs/common"
	"github.com/arnebach/nachosfs/disk"
	"github.com/arnebach/nachosfs/errs"
)

func TestLevelForBoundaries(t *testing.T) {
	assert := assert.New(t)

	l, err := LevelFor(0)
	require := require.New(t)
	require.NoError(err)
	assert.Equal(0, l)

	l, err = LevelFor(common.MaxSize[0])
	require.NoError(err)
	assert.Equal(0, l)

	l, err = LevelFor(common.MaxSize[0] + 1)
	require.NoError(err)
	assert.Equal(1, l)

	_, err = LevelFor(common.MaxSize[common.LevelLimit-1] + 1)
	assert.ErrorIs(err, errs.ErrTooLarge)
}

func TestAllocateSmallFileIsLevel0(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	bm := bitmap.New(64)
	ino, err := Allocate(bm, 200)
	require.NoError(err)
	assert.Equal(2, ino.NumDataSectors())
	assert.Equal(200, ino.Length())
	assert.Equal(64-2, bm.NumClear())
}

func TestAllocateRollsBackOnExhaustion(t *testing.T) {
	assert := assert.New(t)

	bm := bitmap.New(4)
	before := bm.NumClear()
	_, err := Allocate(bm, common.SectorSize*10)
	assert.ErrorIs(err, errs.ErrNoSpace)
	assert.Equal(before, bm.NumClear(), "a failed allocation must not leak sectors")
}

func TestAllocateTooLarge(t *testing.T) {
	bm := bitmap.New(1 << 20)
	_, err := Allocate(bm, common.MaxSize[common.LevelLimit-1]+1)
	assert.ErrorIs(t, err, errs.ErrTooLarge)
}

func TestWriteBackFetchFromRoundTrip(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	dsk := disk.NewMemDisk(256)
	bm := bitmap.New(256)
	bm.Mark(0) // reserve the inode's own sector like the façade does

	size := common.MaxSize[0] + common.SectorSize*5 // forces a level-1 tree
	ino, err := Allocate(bm, size)
	require.NoError(err)
	ino.WriteBack(dsk, 0)

	fetched, err := FetchFrom(dsk, 0)
	require.NoError(err)
	assert.Equal(ino.Length(), fetched.Length())
	assert.Equal(ino.NumDataSectors(), fetched.NumDataSectors())

	for off := 0; off < size; off += common.SectorSize {
		assert.Equal(ino.ByteToSector(off), fetched.ByteToSector(off))
	}
}

func TestReadAtWriteAtRoundTrip(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	dsk := disk.NewMemDisk(64)
	bm := bitmap.New(64)
	ino, err := Allocate(bm, common.SectorSize*3+10)
	require.NoError(err)

	data := make([]byte, ino.Length())
	for i := range data {
		data[i] = byte(i)
	}
	WriteAt(dsk, ino, 0, data)

	got := ReadAt(dsk, ino, 0, ino.Length())
	assert.Equal(data, got)

	mid := ReadAt(dsk, ino, common.SectorSize, common.SectorSize)
	assert.Equal(data[common.SectorSize:2*common.SectorSize], mid)
}

func TestDeallocateFreesEverySectorIncludingInternalInodes(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	bm := bitmap.New(4096)
	before := bm.NumClear()

	size := common.MaxSize[0]*2 + 10 // level-1 tree with three child inodes (two full, one 10-byte)
	ino, err := Allocate(bm, size)
	require.NoError(err)
	assert.Less(bm.NumClear(), before)

	ino.Deallocate(bm)
	// Deallocate frees the subtree's data sectors and every child's own
	// inode sector, but not ino's own sector (the caller's).
	assert.Equal(before, bm.NumClear())
}
