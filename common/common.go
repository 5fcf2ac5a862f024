// Package common holds the on-disk layout constants shared by every other
// package: sector geometry, inode fanout, directory capacity, and the two
// reserved sectors that bootstrap the file system.
package common

import "fmt"

// SectorSize is the size in bytes of one disk sector. It is a compile-time
// parameter, matching the teaching baseline (128 bytes) rather than a real
// disk's 512/4096.
const SectorSize = 128

// InvalidSector marks an absent child pointer, both on disk and in memory.
const InvalidSector = -1

// sizeof(int32), twice over: the on-disk inode header is numBytes,
// numDataSectors, then the children array.
const inodeHeaderSize = 2 * 4

// NumDirect is the fanout of one inode: how many children fit in the
// remainder of a sector after the header.
const NumDirect = (SectorSize - inodeHeaderSize) / 4

// LevelLimit is the number of indirection levels an inode may have,
// 0 (direct) through LevelLimit-1.
const LevelLimit = 4

// MaxSize[L] is the largest file size representable by a level-L inode.
var MaxSize = func() [LevelLimit]int {
	var m [LevelLimit]int
	m[0] = NumDirect * SectorSize
	for l := 1; l < LevelLimit; l++ {
		m[l] = NumDirect * m[l-1]
	}
	return m
}()

// NumDirEntries is the fixed capacity of one directory table.
const NumDirEntries = 64

// FileNameMaxLen is the longest name a directory entry can hold, not
// counting the trailing NUL.
const FileNameMaxLen = 9

// PathNameMaxLen is the longest absolute path, including separators, that
// the resolver will accept.
const PathNameMaxLen = 256

// FileOpenLimit is the capacity of the façade's open-file descriptor table.
const FileOpenLimit = 20

// FreeMapSector and DirectorySector are the two sectors whose contents are
// fixed at format time: the free-bitmap file's inode and the root
// directory's inode, respectively.
const (
	FreeMapSector  = 0
	DirectorySector = 1
)

// Params configures a disk image: its sector size and sector count. Tests
// and the CLI build one of these rather than reaching for the SectorSize
// constant directly, so a disk's geometry travels as a value instead of an
// ambient global.
type Params struct {
	SectorSize int
	NumSectors int
}

// DefaultParams returns the Params this package's constants describe, for
// a disk of numSectors sectors.
func DefaultParams(numSectors int) Params {
	return Params{SectorSize: SectorSize, NumSectors: numSectors}
}

// Validate checks that p describes a disk this build can actually address:
// a sector size matching the compiled-in layout (NumDirect and MaxSize are
// derived from it at compile time, so it cannot vary per-disk) and room
// for at least the two reserved sectors.
func (p Params) Validate() error {
	if p.SectorSize != SectorSize {
		return fmt.Errorf("sector size %d does not match the compiled-in layout (%d)", p.SectorSize, SectorSize)
	}
	if p.NumSectors <= DirectorySector {
		return fmt.Errorf("disk needs more than %d sectors, got %d", DirectorySector, p.NumSectors)
	}
	return nil
}
