// Command simfs is a local command-line front end for the simulated disk
// file system: one host file (conventionally named DISK) standing in for
// a block device, driven through fsys.FileSystem the way the original
// design's test shell drove its in-process FileSystem object.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/arnebach/nachosfs/common"
	"github.com/arnebach/nachosfs/disk"
	"github.com/arnebach/nachosfs/fsys"
)

const usageMessage = `simfs: a simulated disk file system

Usage:
  simfs [-disk path] [-sectors N] [-debug] <command> [args]

Commands:
  format                format (or reformat) the disk
  mkdir <path>           create a directory
  create <path> <size>   create an empty file of size bytes
  put <host> <path>      copy a host file into the disk
  get <path> <host>      copy a file from the disk to a host file
  ls [-r] <path>         list a directory's entries
  rm [-r] <path>         remove a file or (with -r) a directory tree

Global options:
  -disk path    host file backing the simulated disk (default "DISK")
  -sectors N    sector count to format with (default 2048)
  -debug        dump the bitmap and directory tree before running the command
                (not for format)
`

func usage() {
	fmt.Fprint(os.Stderr, usageMessage)
}

func main() {
	diskPath := flag.String("disk", "DISK", "host file backing the simulated disk")
	numSectors := flag.Int("sectors", 2048, "sector count to format with")
	debug := flag.Bool("debug", false, "dump the bitmap and directory tree before running the command (not for format)")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	if err := run(*diskPath, *numSectors, *debug, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "simfs: %v\n", err)
		os.Exit(1)
	}
}

func run(diskPath string, numSectors int, debug bool, cmd string, args []string) error {
	if cmd == "format" {
		return doFormat(diskPath, numSectors)
	}

	stat, err := os.Stat(diskPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", diskPath, err)
	}
	existingSectors := int(stat.Size() / int64(common.SectorSize))
	dsk, err := disk.NewFileDisk(diskPath, common.DefaultParams(existingSectors))
	if err != nil {
		return fmt.Errorf("open %s: %w", diskPath, err)
	}
	defer dsk.Close()

	fs, err := fsys.Open(dsk)
	if err != nil {
		return fmt.Errorf("%s is not a formatted simfs disk: %w", diskPath, err)
	}

	if debug {
		fmt.Print(fs.Debug())
	}

	switch cmd {
	case "mkdir":
		return doMkdir(fs, args)
	case "create":
		return doCreate(fs, args)
	case "put":
		return doPut(fs, args)
	case "get":
		return doGet(fs, args)
	case "ls":
		return doList(fs, args)
	case "rm":
		return doRemove(fs, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func doFormat(diskPath string, numSectors int) error {
	dsk, err := disk.NewFileDisk(diskPath, common.DefaultParams(numSectors))
	if err != nil {
		return err
	}
	defer dsk.Close()
	_, err = fsys.Format(dsk)
	return err
}

func doMkdir(fs *fsys.FileSystem, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mkdir <path>")
	}
	return fs.Mkdir(args[0])
}

func doCreate(fs *fsys.FileSystem, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: create <path> <size>")
	}
	size, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("size: %w", err)
	}
	return fs.Create(args[0], size)
}

func doPut(fs *fsys.FileSystem, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: put <host-file> <path>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if err := fs.Create(args[1], len(data)); err != nil {
		return err
	}
	id, err := fs.OpenFile(args[1])
	if err != nil {
		return err
	}
	defer fs.CloseFile(id)
	_, err = fs.Write(id, data)
	return err
}

func doGet(fs *fsys.FileSystem, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: get <path> <host-file>")
	}
	id, err := fs.OpenFile(args[0])
	if err != nil {
		return err
	}
	defer fs.CloseFile(id)

	out, err := os.Create(args[1])
	if err != nil {
		return err
	}
	defer out.Close()

	const chunk = 4096
	for {
		data, err := fs.Read(id, chunk)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			break
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
	}
	return nil
}

func doList(fs *fsys.FileSystem, args []string) error {
	fset := flag.NewFlagSet("ls", flag.ContinueOnError)
	recursive := fset.Bool("r", false, "list recursively")
	if err := fset.Parse(args); err != nil {
		return err
	}
	path := "/"
	if fset.NArg() == 1 {
		path = fset.Arg(0)
	}
	entries, err := fs.List(path, *recursive)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Println(e)
	}
	return nil
}

func doRemove(fs *fsys.FileSystem, args []string) error {
	fset := flag.NewFlagSet("rm", flag.ContinueOnError)
	recursive := fset.Bool("r", false, "remove a directory tree")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() != 1 {
		return fmt.Errorf("usage: rm [-r] <path>")
	}
	return fs.Remove(fset.Arg(0), *recursive)
}
