package disk

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnebach/nachosfs/common"
)

func TestFileDiskPersistsAcrossReopen(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "DISK")
	params := common.DefaultParams(16)

	d, err := NewFileDisk(path, params)
	require.NoError(err)
	assert.Equal(16, d.Size())

	buf := NewSector()
	copy(buf, "hello sector 3")
	d.WriteSector(3, buf)
	require.NoError(d.Barrier())
	require.NoError(d.Close())

	reopened, err := NewFileDisk(path, params)
	require.NoError(err)
	defer reopened.Close()

	got := NewSector()
	reopened.ReadSector(3, got)
	assert.Equal(buf, got)
}

func TestNewFileDiskRejectsBadParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "DISK")
	_, err := NewFileDisk(path, common.Params{SectorSize: common.SectorSize + 1, NumSectors: 16})
	assert.Error(t, err)
}

func TestMemDiskReadWrite(t *testing.T) {
	assert := assert.New(t)
	d := NewMemDisk(4)
	buf := NewSector()
	copy(buf, "in memory")
	d.WriteSector(1, buf)

	got := NewSector()
	d.ReadSector(1, got)
	assert.Equal(buf, got)

	other := NewSector()
	d.ReadSector(0, other)
	assert.NotEqual(buf, other, "untouched sectors stay zeroed")
}
