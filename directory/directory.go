// Package directory is a fixed-capacity table of named entries, stored as
// the content of a regular file (an inode whose bytes happen to be this
// table rather than arbitrary data). It supports typed lookup, tombstone
// deletion, and the recursive traversal that `rm -r` and `ls -r`
// need.
package directory

import (
	"bytes"

	"github.com/tchajed/marshal"

	"github.com/arnebach/nachosfs/bitmap"
	"github.com/arnebach/nachosfs/common"
	"github.com/arnebach/nachosfs/disk"
	"github.com/arnebach/nachosfs/inode"
)

// entrySize is the on-disk size of one DirectoryEntry: isDir (1 byte),
// inUse (1 byte), sector (int32), name (FileNameMaxLen+1 bytes,
// NUL-terminated), exactly as spec.md §6 lays it out.
const entrySize = 1 + 1 + 4 + (common.FileNameMaxLen + 1)

// Size is the fixed byte length of a directory's content: the payload
// size new directories are Allocated with.
const Size = common.NumDirEntries * entrySize

// Entry is one row of a directory's entry table.
type Entry struct {
	InUse  bool
	IsDir  bool
	Sector int
	Name   string
}

// Directory is the in-memory form of a directory's entry table.
type Directory struct {
	entries [common.NumDirEntries]Entry
}

// New returns an empty directory with room for common.NumDirEntries entries.
func New() *Directory {
	return &Directory{}
}

// Decode parses a directory's raw content bytes (as read from its inode)
// into a Directory.
func Decode(data []byte) *Directory {
	d := New()
	dec := marshal.NewDec(data)
	for i := range d.entries {
		d.entries[i] = decodeEntry(&dec)
	}
	return d
}

// Encode serializes the directory back into its fixed-size content form,
// ready to be written through an inode's data sectors.
func (d *Directory) Encode() []byte {
	enc := marshal.NewEnc(Size)
	for _, e := range d.entries {
		encodeEntry(&enc, e)
	}
	return enc.Finish()
}

func decodeEntry(dec *marshal.Dec) Entry {
	isDir := dec.GetBytes(1)[0] != 0
	inUse := dec.GetBytes(1)[0] != 0
	sector := int(int32(dec.GetInt32()))
	nameBuf := dec.GetBytes(uint64(common.FileNameMaxLen + 1))
	return Entry{
		InUse:  inUse,
		IsDir:  isDir,
		Sector: sector,
		Name:   nameFromBytes(nameBuf),
	}
}

func encodeEntry(enc *marshal.Enc, e Entry) {
	enc.PutBytes([]byte{boolToByte(e.IsDir)})
	enc.PutBytes([]byte{boolToByte(e.InUse)})
	enc.PutInt32(uint32(int32(e.Sector)))
	enc.PutBytes(nameToBytes(e.Name))
}

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func nameToBytes(name string) []byte {
	buf := make([]byte, common.FileNameMaxLen+1)
	copy(buf, name)
	return buf
}

func nameFromBytes(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf)
}

// Find returns the inode sector of the in-use entry named name with the
// given type, or common.InvalidSector if there is none. The type bit
// participates in matching: a file and a directory with the same name
// may coexist, and Find treats them as distinct namespaces.
func (d *Directory) Find(name string, isDir bool) int {
	for _, e := range d.entries {
		if e.InUse && e.IsDir == isDir && e.Name == name {
			return e.Sector
		}
	}
	return common.InvalidSector
}

// Add inserts name -> sector into the first free (not in-use) slot,
// tombstoned slots included. It returns false without modifying the
// directory if every slot is in use.
func (d *Directory) Add(name string, sector int, isDir bool) bool {
	for i := range d.entries {
		if !d.entries[i].InUse {
			d.entries[i] = Entry{InUse: true, IsDir: isDir, Sector: sector, Name: name}
			return true
		}
	}
	return false
}

// Remove tombstones the in-use entry named name with the given type. It
// does not free the target's sectors — that is the façade's job. It
// returns false if no matching entry was found.
func (d *Directory) Remove(name string, isDir bool) bool {
	for i := range d.entries {
		e := &d.entries[i]
		if e.InUse && e.IsDir == isDir && e.Name == name {
			*e = Entry{}
			return true
		}
	}
	return false
}

// RemoveAll recursively frees every entry reachable from this directory:
// for each in-use entry it fetches the entry's inode, recurses first if
// the entry is itself a directory, deallocates the inode's data sectors,
// clears the inode's own sector bit, and tombstones the entry. Used by
// recursive remove.
func (d *Directory) RemoveAll(dsk disk.Disk, bm *bitmap.Bitmap) error {
	for i := range d.entries {
		e := &d.entries[i]
		if !e.InUse {
			continue
		}
		ino, err := inode.FetchFrom(dsk, e.Sector)
		if err != nil {
			return err
		}
		if e.IsDir {
			child := Decode(inode.ReadAll(dsk, ino))
			if err := child.RemoveAll(dsk, bm); err != nil {
				return err
			}
		}
		ino.Deallocate(bm)
		bm.Clear(e.Sector)
		*e = Entry{}
	}
	return nil
}

// List returns one line per in-use entry, in table order, each suffixed
// with "/" if the entry is a directory.
func (d *Directory) List() []string {
	var lines []string
	for _, e := range d.entries {
		if !e.InUse {
			continue
		}
		lines = append(lines, formatName(e))
	}
	return lines
}

// RecursivelyList returns one line per in-use entry reachable from this
// directory, depth-first in table order, each line prefixed by two spaces
// per nesting level below depth.
func (d *Directory) RecursivelyList(dsk disk.Disk, depth int) ([]string, error) {
	var lines []string
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	for _, e := range d.entries {
		if !e.InUse {
			continue
		}
		lines = append(lines, indent+formatName(e))
		if e.IsDir {
			ino, err := inode.FetchFrom(dsk, e.Sector)
			if err != nil {
				return nil, err
			}
			child := Decode(inode.ReadAll(dsk, ino))
			childLines, err := child.RecursivelyList(dsk, depth+1)
			if err != nil {
				return nil, err
			}
			lines = append(lines, childLines...)
		}
	}
	return lines, nil
}

func formatName(e Entry) string {
	if e.IsDir {
		return e.Name + "/"
	}
	return e.Name
}
