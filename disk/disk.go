// Package disk is the block-device interface the rest of the file system
// is built on: read or write one fixed-size sector by index. Everything
// above this layer treats these as infallible synchronous primitives — a
// read or write failure here is a fatal I/O error, not a recoverable one.
package disk

import "github.com/arnebach/nachosfs/common"

// Sector is one SectorSize-byte buffer.
type Sector = []byte

// Disk provides access to a sector-addressed simulated disk.
type Disk interface {
	// ReadSector copies the contents of sector a into buf, which must be
	// exactly SectorSize bytes long. Expects a < Size().
	ReadSector(a int, buf Sector)

	// WriteSector persists buf as sector a. Expects a < Size() and
	// len(buf) == SectorSize.
	WriteSector(a int, buf Sector)

	// Size reports how many sectors the disk holds.
	Size() int

	// Close releases any resources held by the disk.
	Close() error
}

// NewSector allocates a zeroed, SectorSize-byte buffer.
func NewSector() Sector {
	return make(Sector, common.SectorSize)
}
