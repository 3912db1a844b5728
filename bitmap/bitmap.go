// Package bitmap implements the in-memory free-block bitmap: a
// single-threaded set of free block indices, rebuilt from the on-disk inode
// graph at mount and never persisted.
package bitmap

import (
	"fmt"

	bm "github.com/boljen/go-bitmap"
	"github.com/go-sfs/sfs/errors"
	"github.com/go-sfs/sfs/layout"
)

// Reader is the minimal device surface the bitmap needs to reconstruct
// itself: reading blocks and knowing how many there are. It's satisfied by
// block.Device.
type Reader interface {
	Size() uint32
	Read(index uint32, buf []byte) error
}

// Writer is the minimal device surface Allocate needs to zero a
// newly-allocated block. It's satisfied by block.Device.
type Writer interface {
	Write(index uint32, buf []byte) error
}

// Bitmap tracks which blocks on a mounted device are free. true means free.
type Bitmap struct {
	bits        bm.Bitmap
	totalBlocks uint32
}

// New creates a bitmap with every block marked free. Callers almost always
// want Reconstruct immediately afterward to mark the reserved region and
// reachable data blocks as used.
func New(totalBlocks uint32) *Bitmap {
	b := &Bitmap{
		bits:        bm.New(int(totalBlocks)),
		totalBlocks: totalBlocks,
	}
	for i := uint32(0); i < totalBlocks; i++ {
		b.bits.Set(int(i), true)
	}
	return b
}

// IsFree reports whether block index is currently free.
func (b *Bitmap) IsFree(index uint32) bool {
	return b.bits.Get(int(index))
}

// markUsed flips a block to used without zeroing it or checking whether it
// was already used; it's the primitive Reconstruct builds on.
func (b *Bitmap) markUsed(index uint32) {
	b.bits.Set(int(index), false)
}

// Allocate scans from block 0 upward for the first free block, marks it
// used, zeroes it on disk (so later partial writes see defined bytes), and
// returns its index. It returns ErrNoSpace if every block is in use.
func (b *Bitmap) Allocate(disk Writer) (uint32, error) {
	for i := uint32(0); i < b.totalBlocks; i++ {
		if b.bits.Get(int(i)) {
			b.bits.Set(int(i), false)
			zero := make([]byte, layout.BlockSize)
			if err := disk.Write(i, zero); err != nil {
				return 0, errors.ErrDeviceIO.Wrap(err)
			}
			return i, nil
		}
	}
	return 0, errors.ErrNoSpace
}

// Release marks block index as free again. Releasing a block that is
// already free, or one in the reserved superblock/inode-table region, is a
// programmer error; callers must not do it (spec §4.3).
func (b *Bitmap) Release(index uint32) error {
	if index >= b.totalBlocks {
		return fmt.Errorf("bitmap: block %d out of range [0, %d)", index, b.totalBlocks)
	}
	b.bits.Set(int(index), true)
	return nil
}

// Equal reports whether two bitmaps mark exactly the same set of blocks
// free, used to compare a live bitmap against one recomputed by
// Reconstruct (testable property P1).
func (b *Bitmap) Equal(other *Bitmap) bool {
	if b.totalBlocks != other.totalBlocks {
		return false
	}
	for i := uint32(0); i < b.totalBlocks; i++ {
		if b.IsFree(i) != other.IsFree(i) {
			return false
		}
	}
	return true
}

// Diff returns the indices where b and other disagree about whether a block
// is free.
func (b *Bitmap) Diff(other *Bitmap) []uint32 {
	var mismatches []uint32
	limit := b.totalBlocks
	if other.totalBlocks < limit {
		limit = other.totalBlocks
	}
	for i := uint32(0); i < limit; i++ {
		if b.IsFree(i) != other.IsFree(i) {
			mismatches = append(mismatches, i)
		}
	}
	return mismatches
}

// Reconstruct rebuilds the bitmap from scratch by marking the superblock
// and inode table reserved, then walking every valid inode's direct and
// indirect pointers and marking everything reachable as used. This is the
// procedure §4.3 specifies and is called both by Mount and by the
// consistency checker.
func Reconstruct(disk Reader, inodeBlocks uint32, inodeCount uint32) (*Bitmap, error) {
	totalBlocks := disk.Size()
	b := New(totalBlocks)

	// Superblock.
	b.markUsed(0)
	// Inode table.
	for i := uint32(0); i < inodeBlocks; i++ {
		b.markUsed(1 + i)
	}

	dataRegionStart := 1 + inodeBlocks
	blockBuf := make([]byte, layout.BlockSize)

	markIfInRange := func(block uint32) {
		if block == 0 {
			return
		}
		if block < dataRegionStart || block >= totalBlocks {
			return
		}
		b.markUsed(block)
	}

	for n := uint32(0); n < inodeCount; n++ {
		blockIdx, slot := layout.InodeBlock(n)
		if err := disk.Read(1+blockIdx, blockBuf); err != nil {
			return nil, errors.ErrDeviceIO.Wrap(err)
		}
		offset := int(slot) * layout.InodeRecordSize
		rec, err := layout.DecodeInodeRecord(blockBuf[offset : offset+layout.InodeRecordSize])
		if err != nil {
			return nil, err
		}
		if !rec.IsValid() {
			continue
		}

		for _, ptr := range rec.Direct {
			markIfInRange(ptr)
		}
		if rec.Indirect == 0 {
			continue
		}
		markIfInRange(rec.Indirect)

		if rec.Indirect < dataRegionStart || rec.Indirect >= totalBlocks {
			continue
		}
		indirectBuf := make([]byte, layout.BlockSize)
		if err := disk.Read(rec.Indirect, indirectBuf); err != nil {
			return nil, errors.ErrDeviceIO.Wrap(err)
		}
		pointers := layout.DecodeIndirectBlock(indirectBuf)
		for _, ptr := range pointers {
			markIfInRange(ptr)
		}
	}

	return b, nil
}
