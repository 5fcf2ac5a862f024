// Package inode is the file header: the tree of sector pointers that maps
// a file's logical bytes to physical disk sectors. Each node occupies
// exactly one sector on disk and has uniform fanout common.NumDirect; the
// tree's depth (0 through common.LevelLimit-1) is determined by the file's
// size.
//
// An Inode is either freshly Allocated or Fetched from disk — there is no
// exported zero-value constructor, so every live *Inode already carries
// the logical-sector-to-physical-sector mapping that ByteToSector needs.
package inode

import (
	"fmt"

	"github.com/tchajed/marshal"

	"github.com/arnebach/nachosfs/bitmap"
	"github.com/arnebach/nachosfs/common"
	"github.com/arnebach/nachosfs/disk"
	"github.com/arnebach/nachosfs/errs"
	"github.com/arnebach/nachosfs/util"
)

// Inode is one node of a file's sector-pointer tree.
type Inode struct {
	level          int
	numBytes       int
	numDataSectors int
	children       [common.NumDirect]int
	kids           [common.NumDirect]*Inode // populated only when level > 0

	// mapping is the flat, left-to-right list of leaf data sectors. It is
	// the sole authority ByteToSector consults; the tree above is kept
	// only to drive WriteBack and Deallocate.
	mapping []int
}

// LevelFor returns the indirection depth a file of fileSize bytes needs.
func LevelFor(fileSize int) (int, error) {
	for l := 0; l < common.LevelLimit; l++ {
		if fileSize <= common.MaxSize[l] {
			return l, nil
		}
	}
	return 0, errs.ErrTooLarge
}

// sectorsNeeded returns the number of sectors — data sectors plus the
// inode sector of every descendant node, but not fileSize's own node —
// that Allocate will need to represent fileSize bytes. Computing this
// before touching the bitmap lets Allocate reject an oversized request
// without partially allocating it (spec's recommended "precompute exact
// cost" policy over asserting mid-allocation).
func sectorsNeeded(fileSize int) (int, error) {
	level, err := LevelFor(fileSize)
	if err != nil {
		return 0, err
	}
	if level == 0 {
		return util.RoundUp(fileSize, common.SectorSize), nil
	}
	chunk := common.MaxSize[level-1]
	total := 0
	remaining := fileSize
	for remaining > 0 {
		sub := util.Min(remaining, chunk)
		subNeed, err := sectorsNeeded(sub)
		if err != nil {
			return 0, err
		}
		total += 1 + subNeed // 1 for the child's own inode sector
		remaining -= sub
	}
	return total, nil
}

// Allocate builds a fresh inode tree for a file of fileSize bytes,
// claiming sectors from bm. On success, every sector it touched is
// marked in bm. On failure (errs.ErrTooLarge or errs.ErrNoSpace) bm is
// left exactly as it was: Allocate rolls back every bit it set itself.
func Allocate(bm *bitmap.Bitmap, fileSize int) (*Inode, error) {
	if fileSize < 0 {
		panic("inode: negative file size")
	}
	need, err := sectorsNeeded(fileSize)
	if err != nil {
		util.DPrintf(10, "inode: allocate %d bytes: %v\n", fileSize, err)
		return nil, err
	}
	if bm.NumClear() < need {
		util.DPrintf(10, "inode: allocate %d bytes: need %d, have %d clear\n", fileSize, need, bm.NumClear())
		return nil, errs.ErrNoSpace
	}
	var claimed []int
	ino, err := allocate(bm, fileSize, &claimed)
	if err != nil {
		for _, s := range claimed {
			bm.Clear(s)
		}
		util.DPrintf(10, "inode: allocate %d bytes failed, rolled back %d sectors: %v\n", fileSize, len(claimed), err)
		return nil, err
	}
	util.DPrintf(10, "inode: allocated %d bytes across %d sectors, level %d\n", fileSize, len(claimed), ino.level)
	return ino, nil
}

func allocate(bm *bitmap.Bitmap, fileSize int, claimed *[]int) (*Inode, error) {
	level, err := LevelFor(fileSize)
	if err != nil {
		return nil, err
	}
	ino := newUnallocated(level, fileSize)

	if level == 0 {
		ino.mapping = make([]int, 0, ino.numDataSectors)
		for i := 0; i < ino.numDataSectors; i++ {
			s, err := bm.FindAndSet()
			if err != nil {
				return nil, err
			}
			*claimed = append(*claimed, s)
			ino.children[i] = s
			ino.mapping = append(ino.mapping, s)
		}
		return ino, nil
	}

	chunk := common.MaxSize[level-1]
	remaining := fileSize
	i := 0
	for remaining > 0 {
		sub := util.Min(remaining, chunk)
		s, err := bm.FindAndSet()
		if err != nil {
			return nil, err
		}
		*claimed = append(*claimed, s)
		ino.children[i] = s

		child, err := allocate(bm, sub, claimed)
		if err != nil {
			return nil, err
		}
		ino.kids[i] = child
		ino.mapping = append(ino.mapping, child.mapping...)

		remaining -= sub
		i++
	}
	return ino, nil
}

func newUnallocated(level, fileSize int) *Inode {
	ino := &Inode{
		level:          level,
		numBytes:       fileSize,
		numDataSectors: util.RoundUp(fileSize, common.SectorSize),
	}
	for i := range ino.children {
		ino.children[i] = common.InvalidSector
	}
	return ino
}

// Deallocate frees every sector this inode's subtree owns — its data
// sectors if it is a leaf, or each child's subtree followed by the
// child's own inode sector if it is internal — into bm. It does not free
// this inode's own sector; the caller (the façade, which is the one that
// knows where this inode itself lives) does that.
func (ino *Inode) Deallocate(bm *bitmap.Bitmap) {
	util.DPrintf(10, "inode: deallocate %d bytes, level %d\n", ino.numBytes, ino.level)
	if ino.level == 0 {
		for i := 0; i < ino.numDataSectors; i++ {
			s := ino.children[i]
			if !bm.Test(s) {
				panic(fmt.Sprintf("inode: deallocate: sector %d already clear", s))
			}
			bm.Clear(s)
		}
		return
	}
	for i := 0; i < common.NumDirect; i++ {
		s := ino.children[i]
		if s == common.InvalidSector {
			break
		}
		ino.kids[i].Deallocate(bm)
		bm.Clear(s)
	}
}

// FetchFrom reads the inode rooted at sector from d, recursively fetching
// every descendant and rebuilding the logical-to-physical mapping.
func FetchFrom(d disk.Disk, sector int) (*Inode, error) {
	buf := disk.NewSector()
	d.ReadSector(sector, buf)

	numBytes, numDataSectors, children := decode(buf)
	level, err := LevelFor(numBytes)
	if err != nil {
		return nil, err
	}
	ino := &Inode{
		level:          level,
		numBytes:       numBytes,
		numDataSectors: numDataSectors,
		children:       children,
	}

	if level == 0 {
		ino.mapping = make([]int, 0, numDataSectors)
		for i := 0; i < numDataSectors; i++ {
			ino.mapping = append(ino.mapping, ino.children[i])
		}
		return ino, nil
	}
	for i := 0; i < common.NumDirect; i++ {
		s := ino.children[i]
		if s == common.InvalidSector {
			break
		}
		child, err := FetchFrom(d, s)
		if err != nil {
			return nil, err
		}
		ino.kids[i] = child
		ino.mapping = append(ino.mapping, child.mapping...)
	}
	return ino, nil
}

// WriteBack writes this inode's own sector and, if it has children,
// recurses into them. It never rewrites leaf data sectors — those are
// written through the open-file layer, not here.
func (ino *Inode) WriteBack(d disk.Disk, sector int) {
	d.WriteSector(sector, encode(ino.numBytes, ino.numDataSectors, ino.children))
	if ino.level == 0 {
		return
	}
	for i := 0; i < common.NumDirect; i++ {
		s := ino.children[i]
		if s == common.InvalidSector {
			break
		}
		ino.kids[i].WriteBack(d, s)
	}
}

// ByteToSector returns the physical sector holding the byte at offset.
func (ino *Inode) ByteToSector(offset int) int {
	logical := offset / common.SectorSize
	if logical < 0 || logical >= len(ino.mapping) {
		panic(fmt.Sprintf("inode: offset %d out of range for a %d-byte file", offset, ino.numBytes))
	}
	return ino.mapping[logical]
}

// Length returns the file's size in bytes.
func (ino *Inode) Length() int {
	return ino.numBytes
}

// NumDataSectors returns the number of leaf data sectors the file occupies.
func (ino *Inode) NumDataSectors() int {
	return ino.numDataSectors
}

// Level returns the tree's indirection depth: 0 for a file small enough to
// be addressed by direct pointers, up to common.LevelLimit-1.
func (ino *Inode) Level() int {
	return ino.level
}

// ReadAt reads n bytes starting at offset from the file's data sectors,
// going through ByteToSector one sector at a time the way a directory or
// an open-file handle needs to. Expects offset+n <= ino.Length().
func ReadAt(d disk.Disk, ino *Inode, offset, n int) []byte {
	if offset < 0 || n < 0 || offset+n > ino.numBytes {
		panic(fmt.Sprintf("inode: ReadAt(%d, %d) out of range for a %d-byte file", offset, n, ino.numBytes))
	}
	out := make([]byte, n)
	sec := disk.NewSector()
	read := 0
	for read < n {
		pos := offset + read
		s := ino.ByteToSector(pos)
		d.ReadSector(s, sec)
		within := pos % common.SectorSize
		chunk := util.Min(n-read, common.SectorSize-within)
		copy(out[read:read+chunk], sec[within:within+chunk])
		read += chunk
	}
	return out
}

// WriteAt writes data into the file's data sectors starting at offset,
// through ByteToSector. It does not touch inode metadata — callers that
// grow a file's recorded length must still WriteBack the inode. Expects
// offset+len(data) <= ino.Length().
func WriteAt(d disk.Disk, ino *Inode, offset int, data []byte) {
	n := len(data)
	if offset < 0 || offset+n > ino.numBytes {
		panic(fmt.Sprintf("inode: WriteAt(%d, %d bytes) out of range for a %d-byte file", offset, n, ino.numBytes))
	}
	sec := disk.NewSector()
	written := 0
	for written < n {
		pos := offset + written
		s := ino.ByteToSector(pos)
		within := pos % common.SectorSize
		chunk := util.Min(n-written, common.SectorSize-within)
		if chunk < common.SectorSize {
			// partial-sector write: preserve the untouched bytes around it.
			d.ReadSector(s, sec)
		}
		copy(sec[within:within+chunk], data[written:written+chunk])
		d.WriteSector(s, sec)
		written += chunk
	}
}

// ReadAll reads the entire content of the file rooted at ino.
func ReadAll(d disk.Disk, ino *Inode) []byte {
	return ReadAt(d, ino, 0, ino.numBytes)
}

// encode packs the on-disk inode header: numBytes, numDataSectors, then
// the children array, each field a little-endian int32, laid out exactly
// as spec.md §6 describes.
func encode(numBytes, numDataSectors int, children [common.NumDirect]int) []byte {
	enc := marshal.NewEnc(common.SectorSize)
	enc.PutInt32(int32ToUint32(numBytes))
	enc.PutInt32(int32ToUint32(numDataSectors))
	for _, c := range children {
		enc.PutInt32(int32ToUint32(c))
	}
	return enc.Finish()
}

func decode(buf []byte) (numBytes, numDataSectors int, children [common.NumDirect]int) {
	dec := marshal.NewDec(buf)
	numBytes = uint32ToInt32(dec.GetInt32())
	numDataSectors = uint32ToInt32(dec.GetInt32())
	for i := range children {
		children[i] = uint32ToInt32(dec.GetInt32())
	}
	return
}

func int32ToUint32(v int) uint32 {
	return uint32(int32(v))
}

func uint32ToInt32(v uint32) int {
	return int(int32(v))
}
