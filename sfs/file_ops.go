package sfs

import (
	"fmt"

	"github.com/go-sfs/sfs/errors"
	"github.com/go-sfs/sfs/layout"
	"github.com/sirupsen/logrus"
)

// Create scans the inode table in ascending order for the first unused
// slot, rewrites it as an empty valid inode, and returns its inumber. It
// returns -1 if every inode slot is in use.
func (fs *FileSystem) Create() int64 {
	if fs.freeBitmap == nil {
		logOpFailure("create", errors.ErrNotMounted, nil)
		return -1
	}

	for n := uint32(0); n < fs.inodes; n++ {
		rec, err := fs.loadInode(n)
		if err != nil {
			continue
		}
		if rec.IsValid() {
			continue
		}

		if err := fs.saveInode(n, layout.InodeRecord{Valid: 1}); err != nil {
			return -1
		}
		return int64(n)
	}

	logOpFailure("create", errors.ErrNoFreeInodes, logrus.Fields{"inodes": fs.inodes})
	return -1
}

// Remove frees every block belonging to inumber and marks its inode
// invalid. It returns false if inumber is out of range or already
// unallocated.
//
// The indirect block, if any, is read in full before any of its pointers
// or the block itself are released: releasing first and reading afterward
// risks the block being reallocated and overwritten by the time its old
// contents are needed (see the design notes on this ordering).
func (fs *FileSystem) Remove(inumber uint32) bool {
	if fs.freeBitmap == nil {
		logOpFailure("remove", errors.ErrNotMounted, logrus.Fields{"inumber": inumber})
		return false
	}

	rec, err := fs.resolveInode("remove", inumber)
	if err != nil {
		return false
	}

	for _, ptr := range rec.Direct {
		if ptr != 0 {
			fs.freeBitmap.Release(ptr)
		}
	}

	if rec.Indirect != 0 {
		buf := make([]byte, layout.BlockSize)
		if err := fs.disk.Read(rec.Indirect, buf); err == nil {
			for _, ptr := range layout.DecodeIndirectBlock(buf) {
				if ptr != 0 {
					fs.freeBitmap.Release(ptr)
				}
			}
		}
		fs.freeBitmap.Release(rec.Indirect)
	}

	return fs.saveInode(inumber, layout.InodeRecord{}) == nil
}

// Stat returns inumber's logical size, or -1 if inumber is out of range or
// unallocated.
func (fs *FileSystem) Stat(inumber uint32) int64 {
	if fs.freeBitmap == nil {
		logOpFailure("stat", errors.ErrNotMounted, logrus.Fields{"inumber": inumber})
		return -1
	}

	rec, err := fs.resolveInode("stat", inumber)
	if err != nil {
		return -1
	}
	return int64(rec.Size)
}

// Read fills buf with up to len(buf) bytes of inumber's data starting at
// offset, clamped to the inode's current size, and returns the number of
// bytes copied. It returns -1 if inumber is invalid, if offset is past the
// end of the file, or if it encounters a zero block pointer within the
// claimed size (treated as filesystem corruption per the design notes,
// rather than silently returned as zero bytes).
//
// offset == Size is valid and returns 0, not an error.
func (fs *FileSystem) Read(inumber uint32, buf []byte, offset uint32) int64 {
	if fs.freeBitmap == nil {
		logOpFailure("read", errors.ErrNotMounted, logrus.Fields{"inumber": inumber})
		return -1
	}

	rec, err := fs.resolveInode("read", inumber)
	if err != nil {
		return -1
	}
	if offset > rec.Size {
		err := errors.ErrOffsetPastEnd.WithMessage(fmt.Sprintf("offset %d > size %d", offset, rec.Size))
		logOpFailure("read", err, logrus.Fields{"inumber": inumber})
		return -1
	}

	length := uint32(len(buf))
	if remaining := rec.Size - offset; length > remaining {
		length = remaining
	}
	if length == 0 {
		return 0
	}

	startBlock := offset / layout.BlockSize
	endBlock := (offset + length - 1) / layout.BlockSize

	var indirect [layout.PointersPerBlock]uint32
	indirectLoaded := false
	blockBuf := make([]byte, layout.BlockSize)

	var written uint32
	for i := startBlock; i <= endBlock; i++ {
		var ptr uint32
		if i < layout.PointersPerInode {
			ptr = rec.Direct[i]
		} else {
			if !indirectLoaded {
				if rec.Indirect == 0 {
					return -1
				}
				indirectBuf := make([]byte, layout.BlockSize)
				if err := fs.disk.Read(rec.Indirect, indirectBuf); err != nil {
					return -1
				}
				indirect = layout.DecodeIndirectBlock(indirectBuf)
				indirectLoaded = true
			}
			ptr = indirect[i-layout.PointersPerInode]
		}
		if ptr == 0 {
			return -1
		}

		if err := fs.disk.Read(ptr, blockBuf); err != nil {
			return -1
		}

		copyStart := uint32(0)
		if i == startBlock {
			copyStart = offset % layout.BlockSize
		}
		copyEnd := uint32(layout.BlockSize)
		if i == endBlock {
			copyEnd = (offset+length-1)%layout.BlockSize + 1
		}

		n := copy(buf[written:written+(copyEnd-copyStart)], blockBuf[copyStart:copyEnd])
		written += uint32(n)
	}

	return int64(written)
}

// Write stores len(data) bytes (clamped so offset+length never exceeds
// layout.MaxFileSize) from data into inumber starting at offset, extending
// the file as needed, and returns the number of bytes actually written. It
// returns -1 if inumber is invalid or offset is past the current size.
//
// If the device runs out of free blocks partway through, Write stops and
// returns a short count; every block it allocated before running out is
// either referenced by the inode (possibly still holding zeroed, unwritten
// content) or was never allocated in the first place, so the inode and its
// pointers stay internally consistent.
func (fs *FileSystem) Write(inumber uint32, data []byte, offset uint32) int64 {
	if fs.freeBitmap == nil {
		logOpFailure("write", errors.ErrNotMounted, logrus.Fields{"inumber": inumber})
		return -1
	}

	rec, err := fs.resolveInode("write", inumber)
	if err != nil {
		return -1
	}
	if offset > rec.Size {
		err := errors.ErrOffsetPastEnd.WithMessage(fmt.Sprintf("offset %d > size %d", offset, rec.Size))
		logOpFailure("write", err, logrus.Fields{"inumber": inumber})
		return -1
	}

	length := uint32(len(data))
	if maxLen := uint32(layout.MaxFileSize) - offset; length > maxLen {
		length = maxLen
	}
	if length == 0 {
		return 0
	}

	startBlock := offset / layout.BlockSize
	endBlock := (offset + length - 1) / layout.BlockSize

	var indirect [layout.PointersPerBlock]uint32
	indirectLoaded := false
	indirectDirty := false

	var written uint32
	for i := startBlock; i <= endBlock; i++ {
		var ptr uint32

		if i < layout.PointersPerInode {
			ptr = rec.Direct[i]
			if ptr == 0 {
				newPtr, err := fs.freeBitmap.Allocate(fs.disk)
				if err != nil {
					goto finalize
				}
				rec.Direct[i] = newPtr
				ptr = newPtr
			}
		} else {
			if !indirectLoaded {
				if rec.Indirect == 0 {
					newPtr, err := fs.freeBitmap.Allocate(fs.disk)
					if err != nil {
						goto finalize
					}
					rec.Indirect = newPtr
					indirectDirty = true
				} else {
					indirectBuf := make([]byte, layout.BlockSize)
					if err := fs.disk.Read(rec.Indirect, indirectBuf); err != nil {
						goto finalize
					}
					indirect = layout.DecodeIndirectBlock(indirectBuf)
				}
				indirectLoaded = true
			}

			slot := i - layout.PointersPerInode
			ptr = indirect[slot]
			if ptr == 0 {
				newPtr, err := fs.freeBitmap.Allocate(fs.disk)
				if err != nil {
					goto finalize
				}
				indirect[slot] = newPtr
				indirectDirty = true
				ptr = newPtr
			}
		}

		{
			copyStart := uint32(0)
			if i == startBlock {
				copyStart = offset % layout.BlockSize
			}
			copyEnd := uint32(layout.BlockSize)
			if i == endBlock {
				copyEnd = (offset+length-1)%layout.BlockSize + 1
			}

			blockBuf := make([]byte, layout.BlockSize)
			if copyStart != 0 || copyEnd != layout.BlockSize {
				if err := fs.disk.Read(ptr, blockBuf); err != nil {
					goto finalize
				}
			}

			n := copy(blockBuf[copyStart:copyEnd], data[written:written+(copyEnd-copyStart)])
			if err := fs.disk.Write(ptr, blockBuf); err != nil {
				goto finalize
			}
			written += uint32(n)
		}
	}

finalize:
	rec.Size = max(rec.Size, offset+written)
	if err := fs.saveInode(inumber, rec); err != nil {
		return -1
	}
	if indirectDirty {
		if err := fs.disk.Write(rec.Indirect, layout.EncodeIndirectBlock(indirect)); err != nil {
			return -1
		}
	}
	return int64(written)
}
