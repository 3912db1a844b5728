package sfs

import (
	"fmt"

	"github.com/go-sfs/sfs/errors"
	"github.com/go-sfs/sfs/layout"
	"github.com/sirupsen/logrus"
)

// loadInode reads inode n's record, bounds-checking against the mounted
// inode count. The Valid flag in the returned record may be 0.
func (fs *FileSystem) loadInode(n uint32) (layout.InodeRecord, error) {
	if n >= fs.inodes {
		return layout.InodeRecord{}, errors.ErrInvalidInumber.WithMessage(
			fmt.Sprintf("inumber %d not in [0, %d)", n, fs.inodes))
	}

	blockIdx, slot := layout.InodeBlock(n)
	buf := make([]byte, layout.BlockSize)
	if err := fs.disk.Read(1+blockIdx, buf); err != nil {
		return layout.InodeRecord{}, errors.ErrDeviceIO.Wrap(err)
	}

	offset := int(slot) * layout.InodeRecordSize
	return layout.DecodeInodeRecord(buf[offset : offset+layout.InodeRecordSize])
}

// saveInode writes rec as inode n's record with a read-modify-write of the
// containing inode block, bounds-checking against the mounted inode count.
func (fs *FileSystem) saveInode(n uint32, rec layout.InodeRecord) error {
	if n >= fs.inodes {
		return errors.ErrInvalidInumber.WithMessage(
			fmt.Sprintf("inumber %d not in [0, %d)", n, fs.inodes))
	}

	blockIdx, slot := layout.InodeBlock(n)
	buf := make([]byte, layout.BlockSize)
	if err := fs.disk.Read(1+blockIdx, buf); err != nil {
		return errors.ErrDeviceIO.Wrap(err)
	}

	offset := int(slot) * layout.InodeRecordSize
	copy(buf[offset:offset+layout.InodeRecordSize], rec.Encode())

	if err := fs.disk.Write(1+blockIdx, buf); err != nil {
		return errors.ErrDeviceIO.Wrap(err)
	}
	return nil
}

// resolveInode loads inumber's record and confirms it is currently
// allocated. It returns errors.ErrInvalidInumber or errors.ErrInodeNotAllocated
// (logged at debug level via logOpFailure) on failure; op is the public
// operation name, used only for the log fields. Create does not use this,
// since it specifically wants unallocated slots.
func (fs *FileSystem) resolveInode(op string, inumber uint32) (layout.InodeRecord, error) {
	rec, err := fs.loadInode(inumber)
	if err != nil {
		logOpFailure(op, err, logrus.Fields{"inumber": inumber})
		return layout.InodeRecord{}, err
	}
	if !rec.IsValid() {
		err := errors.ErrInodeNotAllocated.WithMessage(fmt.Sprintf("inumber %d", inumber))
		logOpFailure(op, err, logrus.Fields{"inumber": inumber})
		return layout.InodeRecord{}, err
	}
	return rec, nil
}
