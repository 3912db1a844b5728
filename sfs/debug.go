package sfs

import (
	"fmt"
	"io"

	"github.com/go-sfs/sfs/block"
	"github.com/go-sfs/sfs/layout"
	"github.com/sirupsen/logrus"
)

// Debug performs a read-only inspection of disk without requiring it to be
// mounted, printing the superblock fields (including whether the magic
// number is valid) and, if the geometry checks out, every valid inode's
// size, direct pointers, and (if present) indirect block contents to w.
//
// An image with a bad magic number or inconsistent geometry is reported as
// such and Debug stops there; it never reads the inode table of a
// superblock it can't trust.
func Debug(disk block.Device, w io.Writer) error {
	sbBlock := make([]byte, layout.BlockSize)
	if err := disk.Read(0, sbBlock); err != nil {
		return err
	}
	sb, err := layout.DecodeSuperblock(sbBlock)
	if err != nil {
		return err
	}

	magicState := "valid"
	magicErr := sb.ValidateMagic()
	if magicErr != nil {
		magicState = fmt.Sprintf("INVALID (%s)", magicErr)
	}
	geometryErr := sb.Validate(disk.Size())
	if geometryErr != nil {
		logrus.WithField("op", "debug").Warn(geometryErr)
	}

	fmt.Fprintf(w, "SuperBlock:\n")
	fmt.Fprintf(w, "    magic number is %s\n", magicState)
	fmt.Fprintf(w, "    %d blocks\n", sb.Blocks)
	fmt.Fprintf(w, "    %d inode blocks\n", sb.InodeBlocks)
	fmt.Fprintf(w, "    %d inodes\n", sb.Inodes)

	if geometryErr != nil {
		if magicErr == nil {
			fmt.Fprintf(w, "    geometry is INVALID (%s)\n", geometryErr)
		}
		return nil
	}

	blockBuf := make([]byte, layout.BlockSize)
	for n := uint32(0); n < sb.Inodes; n++ {
		blockIdx, slot := layout.InodeBlock(n)
		if slot == 0 {
			if err := disk.Read(1+blockIdx, blockBuf); err != nil {
				return err
			}
		}

		offset := int(slot) * layout.InodeRecordSize
		rec, err := layout.DecodeInodeRecord(blockBuf[offset : offset+layout.InodeRecordSize])
		if err != nil {
			return err
		}
		if !rec.IsValid() {
			continue
		}

		fmt.Fprintf(w, "Inode %d:\n", n)
		fmt.Fprintf(w, "    size: %d bytes\n", rec.Size)

		direct := make([]string, 0, layout.PointersPerInode)
		for _, ptr := range rec.Direct {
			if ptr != 0 {
				direct = append(direct, fmt.Sprint(ptr))
			}
		}
		fmt.Fprintf(w, "    direct blocks: %v\n", direct)

		if rec.Indirect == 0 {
			continue
		}
		fmt.Fprintf(w, "    indirect block: %d\n", rec.Indirect)

		indirectBuf := make([]byte, layout.BlockSize)
		if err := disk.Read(rec.Indirect, indirectBuf); err != nil {
			return err
		}
		pointers := layout.DecodeIndirectBlock(indirectBuf)

		indirectData := make([]string, 0)
		for _, ptr := range pointers {
			if ptr != 0 {
				indirectData = append(indirectData, fmt.Sprint(ptr))
			}
		}
		fmt.Fprintf(w, "    indirect data blocks: %v\n", indirectData)
	}

	return nil
}
