// Package fsys is the file system façade: the one object that owns the
// disk, the in-memory free-sector bitmap, and the fixed-size open-file
// table, and that turns slash-separated paths into the sector numbers the
// inode and directory packages operate on.
//
// Every operation that changes the directory tree or the bitmap writes its
// changes straight back to disk before returning successfully — there is no
// journal, no commit/abort distinction and no separate sync step. An
// operation that fails partway through (for example on an unreadable
// inode) may already have changed the in-memory bitmap without writing it
// back.
package fsys

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arnebach/nachosfs/bitmap"
	"github.com/arnebach/nachosfs/common"
	"github.com/arnebach/nachosfs/directory"
	"github.com/arnebach/nachosfs/disk"
	"github.com/arnebach/nachosfs/errs"
	"github.com/arnebach/nachosfs/inode"
	"github.com/arnebach/nachosfs/util"
)

// FileID identifies a slot in a FileSystem's open-file table.
type FileID int

type handle struct {
	ino    *inode.Inode
	sector int
	offset int
}

// FileSystem is an open instance of the on-disk layout: the free-sector
// bitmap (kept entirely in memory, mirrored to its reserved file on every
// change) and the table of currently-open files.
type FileSystem struct {
	dsk        disk.Disk
	bm         *bitmap.Bitmap
	freeMapIno *inode.Inode
	openFiles  [common.FileOpenLimit]*handle
}

// Format initializes a fresh disk: an empty free-sector bitmap (with the
// two reserved sectors and everything the bitmap and root directory files
// themselves consume already marked), and an empty root directory. It
// mirrors FileSystem::FileSystem(format=true) from the original design,
// without the fixed well-known sector numbers becoming package globals.
func Format(dsk disk.Disk) (*FileSystem, error) {
	bm := bitmap.New(dsk.Size())
	bm.Mark(common.FreeMapSector)
	bm.Mark(common.DirectorySector)

	freeMapIno, err := inode.Allocate(bm, bitmap.ByteLen(dsk.Size()))
	if err != nil {
		return nil, err
	}
	dirIno, err := inode.Allocate(bm, directory.Size)
	if err != nil {
		return nil, err
	}

	freeMapIno.WriteBack(dsk, common.FreeMapSector)
	dirIno.WriteBack(dsk, common.DirectorySector)

	inode.WriteAt(dsk, dirIno, 0, directory.New().Encode())
	inode.WriteAt(dsk, freeMapIno, 0, bm.Bytes())

	if fd, ok := dsk.(*disk.FileDisk); ok {
		if err := fd.Barrier(); err != nil {
			return nil, err
		}
	}

	return &FileSystem{dsk: dsk, bm: bm, freeMapIno: freeMapIno}, nil
}

// Open attaches to an already-formatted disk, reading the free-sector
// bitmap back out of its reserved file.
func Open(dsk disk.Disk) (*FileSystem, error) {
	freeMapIno, err := inode.FetchFrom(dsk, common.FreeMapSector)
	if err != nil {
		return nil, err
	}
	bm := bitmap.ReadFrom(inode.ReadAll(dsk, freeMapIno), dsk.Size())
	return &FileSystem{dsk: dsk, bm: bm, freeMapIno: freeMapIno}, nil
}

// Close releases the underlying disk. It does not flush anything, since
// every mutating operation already wrote its changes through before
// returning.
func (fs *FileSystem) Close() error {
	return fs.dsk.Close()
}

func (fs *FileSystem) saveBitmap() {
	inode.WriteAt(fs.dsk, fs.freeMapIno, 0, fs.bm.Bytes())
}

func (fs *FileSystem) loadDir(sector int) (*directory.Directory, error) {
	ino, err := inode.FetchFrom(fs.dsk, sector)
	if err != nil {
		return nil, err
	}
	return directory.Decode(inode.ReadAll(fs.dsk, ino)), nil
}

func (fs *FileSystem) saveDir(sector int, dir *directory.Directory) error {
	ino, err := inode.FetchFrom(fs.dsk, sector)
	if err != nil {
		return err
	}
	inode.WriteAt(fs.dsk, ino, 0, dir.Encode())
	return nil
}

// splitPath breaks an absolute path into its non-empty components,
// rejecting anything that is not rooted at "/" or that has an empty
// component (a doubled or trailing slash), the way splitPath plus its
// empty-token rejection does in the original design.
func splitPath(path string) ([]string, error) {
	if len(path) == 0 || path[0] != '/' {
		return nil, errs.ErrInvalidPath
	}
	if len(path) >= common.PathNameMaxLen {
		return nil, errs.ErrPathTooLong
	}
	if path == "/" {
		return nil, nil
	}
	parts := strings.Split(path[1:], "/")
	for _, p := range parts {
		if p == "" {
			return nil, errs.ErrInvalidPath
		}
		if len(p) > common.FileNameMaxLen {
			return nil, errs.ErrPathTooLong
		}
	}
	return parts, nil
}

// resolve walks path from the root directory, returning the sector of the
// entry named by path's final component (typed by wantDir), the sector of
// the directory that holds that entry, and the bare component name. Every
// component but the last must itself be a directory.
//
// On errs.ErrNotFound, parentSector is valid (common.InvalidSector
// excepted) whenever the walk made it to the entry's containing directory
// without finding the final component there — which is exactly the case a
// caller creating a new entry needs.
func (fs *FileSystem) resolve(path string, wantDir bool) (sector, parentSector int, name string, err error) {
	parts, err := splitPath(path)
	if err != nil {
		return common.InvalidSector, common.InvalidSector, "", err
	}
	if parts == nil {
		if !wantDir {
			return common.InvalidSector, common.InvalidSector, "", errs.ErrNotFound
		}
		return common.DirectorySector, common.InvalidSector, "", nil
	}

	currentSector := common.DirectorySector
	for i, p := range parts {
		isLast := i == len(parts)-1
		dir, err := fs.loadDir(currentSector)
		if err != nil {
			return common.InvalidSector, common.InvalidSector, "", err
		}
		if isLast {
			found := dir.Find(p, wantDir)
			if found == common.InvalidSector {
				return common.InvalidSector, currentSector, p, errs.ErrNotFound
			}
			return found, currentSector, p, nil
		}
		found := dir.Find(p, true)
		if found == common.InvalidSector {
			return common.InvalidSector, common.InvalidSector, p, errs.ErrNotFound
		}
		currentSector = found
	}
	panic("unreachable")
}

// Create makes a new regular file of size bytes at path. path's parent
// must already exist as a directory, and no entry — file or directory —
// may already occupy the name.
func (fs *FileSystem) Create(path string, size int) error {
	err := fs.createEntry(path, false, size)
	if err != nil {
		util.DPrintf(1, "fsys: create %s (%d bytes): %v\n", path, size, err)
	}
	return err
}

// Mkdir makes a new, empty directory at path.
func (fs *FileSystem) Mkdir(path string) error {
	err := fs.createEntry(path, true, directory.Size)
	if err != nil {
		util.DPrintf(1, "fsys: mkdir %s: %v\n", path, err)
	}
	return err
}

func (fs *FileSystem) createEntry(path string, isDir bool, size int) error {
	_, parentSector, name, err := fs.resolve(path, false)
	if err == nil {
		return errs.ErrExists
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	if _, _, _, err := fs.resolve(path, true); err == nil {
		return errs.ErrExists
	} else if !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	if parentSector == common.InvalidSector {
		return errs.ErrNotFound
	}

	parentDir, err := fs.loadDir(parentSector)
	if err != nil {
		return err
	}

	ino, err := inode.Allocate(fs.bm, size)
	if err != nil {
		return err
	}
	sector, err := fs.bm.FindAndSet()
	if err != nil {
		ino.Deallocate(fs.bm)
		return err
	}
	if !parentDir.Add(name, sector, isDir) {
		fs.bm.Clear(sector)
		ino.Deallocate(fs.bm)
		return errs.ErrDirFull
	}

	ino.WriteBack(fs.dsk, sector)
	if isDir {
		inode.WriteAt(fs.dsk, ino, 0, directory.New().Encode())
	}
	if err := fs.saveDir(parentSector, parentDir); err != nil {
		return err
	}
	fs.saveBitmap()
	util.DPrintf(5, "fsys: created %s at sector %d (dir=%v)\n", path, sector, isDir)
	return nil
}

// Remove deletes the entry at path. If recursive is false, path must name
// a regular file. If recursive is true, path may name either a file (which
// is simply removed) or a directory (whose entire subtree, recursively, is
// freed first).
func (fs *FileSystem) Remove(path string, recursive bool) error {
	err := fs.remove(path, recursive)
	if err != nil {
		util.DPrintf(1, "fsys: remove %s (recursive=%v): %v\n", path, recursive, err)
	}
	return err
}

func (fs *FileSystem) remove(path string, recursive bool) error {
	if path == "/" {
		return errs.ErrInvalidPath
	}
	if recursive {
		sector, parentSector, name, err := fs.resolve(path, true)
		if err == nil {
			return fs.removeDir(sector, parentSector, name)
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return err
		}
	}
	sector, parentSector, name, err := fs.resolve(path, false)
	if err != nil {
		return err
	}
	return fs.removeFile(sector, parentSector, name)
}

func (fs *FileSystem) removeFile(sector, parentSector int, name string) error {
	ino, err := inode.FetchFrom(fs.dsk, sector)
	if err != nil {
		return err
	}
	parentDir, err := fs.loadDir(parentSector)
	if err != nil {
		return err
	}
	ino.Deallocate(fs.bm)
	fs.bm.Clear(sector)
	parentDir.Remove(name, false)
	if err := fs.saveDir(parentSector, parentDir); err != nil {
		return err
	}
	fs.saveBitmap()
	util.DPrintf(5, "fsys: removed file %q at sector %d\n", name, sector)
	return nil
}

func (fs *FileSystem) removeDir(sector, parentSector int, name string) error {
	ino, err := inode.FetchFrom(fs.dsk, sector)
	if err != nil {
		return err
	}
	dir := directory.Decode(inode.ReadAll(fs.dsk, ino))
	if err := dir.RemoveAll(fs.dsk, fs.bm); err != nil {
		return err
	}
	parentDir, err := fs.loadDir(parentSector)
	if err != nil {
		return err
	}
	ino.Deallocate(fs.bm)
	fs.bm.Clear(sector)
	parentDir.Remove(name, true)
	if err := fs.saveDir(parentSector, parentDir); err != nil {
		return err
	}
	fs.saveBitmap()
	util.DPrintf(5, "fsys: removed directory tree %q at sector %d\n", name, sector)
	return nil
}

// List returns the entries of the directory at path: one line per entry
// if recursive is false, or the full subtree (indented by nesting depth)
// if recursive is true.
func (fs *FileSystem) List(path string, recursive bool) ([]string, error) {
	entries, err := fs.list(path, recursive)
	if err != nil {
		util.DPrintf(1, "fsys: list %s (recursive=%v): %v\n", path, recursive, err)
	}
	return entries, err
}

func (fs *FileSystem) list(path string, recursive bool) ([]string, error) {
	sector, _, _, err := fs.resolve(path, true)
	if err != nil {
		return nil, err
	}
	ino, err := inode.FetchFrom(fs.dsk, sector)
	if err != nil {
		return nil, err
	}
	dir := directory.Decode(inode.ReadAll(fs.dsk, ino))
	if recursive {
		return dir.RecursivelyList(fs.dsk, 0)
	}
	return dir.List(), nil
}

// OpenFile opens path — a regular file or a directory, whichever the name
// resolves to — for reading and writing, returning a FileID valid until
// CloseFile. It fails with errs.ErrTooManyOpen if every table slot is in use.
func (fs *FileSystem) OpenFile(path string) (FileID, error) {
	id, err := fs.openFile(path)
	if err != nil {
		util.DPrintf(1, "fsys: open %s: %v\n", path, err)
	}
	return id, err
}

func (fs *FileSystem) openFile(path string) (FileID, error) {
	sector, _, _, err := fs.resolve(path, false)
	if errors.Is(err, errs.ErrNotFound) {
		sector, _, _, err = fs.resolve(path, true)
	}
	if err != nil {
		return -1, err
	}
	ino, err := inode.FetchFrom(fs.dsk, sector)
	if err != nil {
		return -1, err
	}
	for i, h := range fs.openFiles {
		if h == nil {
			fs.openFiles[i] = &handle{ino: ino, sector: sector}
			return FileID(i), nil
		}
	}
	return -1, errs.ErrTooManyOpen
}

func (fs *FileSystem) handleFor(id FileID) (*handle, error) {
	if id < 0 || int(id) >= common.FileOpenLimit || fs.openFiles[id] == nil {
		return nil, errs.ErrBadHandle
	}
	return fs.openFiles[id], nil
}

// Read reads up to n bytes from id's current offset, advancing it by the
// number of bytes actually read. It reads fewer than n bytes, possibly
// zero, once the offset reaches the file's end — files in this design
// never grow past the size they were created with.
func (fs *FileSystem) Read(id FileID, n int) ([]byte, error) {
	h, err := fs.handleFor(id)
	if err != nil {
		return nil, err
	}
	avail := h.ino.Length() - h.offset
	if avail <= 0 || n <= 0 {
		return []byte{}, nil
	}
	if n > avail {
		n = avail
	}
	data := inode.ReadAt(fs.dsk, h.ino, h.offset, n)
	h.offset += n
	return data, nil
}

// Write writes data at id's current offset, advancing it by the number of
// bytes actually written. Like Read, it silently truncates once the
// offset reaches the file's fixed size.
func (fs *FileSystem) Write(id FileID, data []byte) (int, error) {
	h, err := fs.handleFor(id)
	if err != nil {
		return 0, err
	}
	avail := h.ino.Length() - h.offset
	if avail <= 0 || len(data) == 0 {
		return 0, nil
	}
	n := len(data)
	if n > avail {
		n = avail
	}
	inode.WriteAt(fs.dsk, h.ino, h.offset, data[:n])
	h.offset += n
	return n, nil
}

// Seek repositions id's current offset, clamped to [0, length].
func (fs *FileSystem) Seek(id FileID, offset int) error {
	h, err := fs.handleFor(id)
	if err != nil {
		return err
	}
	if offset < 0 {
		offset = 0
	}
	if offset > h.ino.Length() {
		offset = h.ino.Length()
	}
	h.offset = offset
	return nil
}

// CloseFile releases id's slot in the open-file table.
func (fs *FileSystem) CloseFile(id FileID) error {
	if _, err := fs.handleFor(id); err != nil {
		return err
	}
	fs.openFiles[id] = nil
	return nil
}

// Debug dumps the free-sector bitmap's occupancy and the full directory
// tree, with each entry's inode metadata, to a string. It exists purely
// for inspection (the CLI's -debug flag) and is the Go counterpart of the
// original design's FileHeader::Print/FileSystem::Print dump.
func (fs *FileSystem) Debug() string {
	var b strings.Builder
	fmt.Fprintf(&b, "bitmap: %d/%d sectors free\n", fs.bm.NumClear(), fs.bm.NumBits())

	rootIno, err := inode.FetchFrom(fs.dsk, common.DirectorySector)
	if err != nil {
		fmt.Fprintf(&b, "root directory: %v\n", err)
		return b.String()
	}
	fmt.Fprintf(&b, "root directory: sector %d, %d bytes\n", common.DirectorySector, rootIno.Length())
	root := directory.Decode(inode.ReadAll(fs.dsk, rootIno))
	fs.debugDir(&b, root, 0)
	return b.String()
}

func (fs *FileSystem) debugDir(b *strings.Builder, dir *directory.Directory, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, name := range dir.List() {
		isDir := strings.HasSuffix(name, "/")
		bare := strings.TrimSuffix(name, "/")
		sector := dir.Find(bare, isDir)
		ino, err := inode.FetchFrom(fs.dsk, sector)
		if err != nil {
			fmt.Fprintf(b, "%s%s: %v\n", indent, name, err)
			continue
		}
		fmt.Fprintf(b, "%ssector %d: %s, %d bytes, %d data sectors, level %d\n",
			indent, sector, name, ino.Length(), ino.NumDataSectors(), ino.Level())
		if isDir {
			child := directory.Decode(inode.ReadAll(fs.dsk, ino))
			fs.debugDir(b, child, depth+1)
		}
	}
}
