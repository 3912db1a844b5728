package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Superblock is block 0 of an SFS image. It is written once by Format and
// never rewritten afterward.
type Superblock struct {
	MagicNumber uint32
	Blocks      uint32
	InodeBlocks uint32
	Inodes      uint32
}

// NewSuperblock computes a superblock for an image of totalBlocks blocks,
// following the InodeBlocks = ceil(Blocks/10), Inodes = InodeBlocks *
// InodesPerBlock derivation from the layout constants.
func NewSuperblock(totalBlocks uint32) Superblock {
	inodeBlocks := NumInodeBlocks(totalBlocks)
	return Superblock{
		MagicNumber: MagicNumber,
		Blocks:      totalBlocks,
		InodeBlocks: inodeBlocks,
		Inodes:      inodeBlocks * InodesPerBlock,
	}
}

// ValidateMagic checks only the superblock's magic number. Callers that need
// to distinguish a bad magic number from a geometry mismatch (the two map to
// different sentinels in the errors package) should call this before
// ValidateGeometry rather than calling Validate.
func (sb Superblock) ValidateMagic() error {
	if sb.MagicNumber != MagicNumber {
		return fmt.Errorf("bad magic number: got 0x%08x, want 0x%08x", sb.MagicNumber, uint32(MagicNumber))
	}
	return nil
}

// ValidateGeometry checks the superblock's block/inode counts against an
// actual device block count: Blocks matching the device, InodeBlocks
// matching ceil(Blocks/10), and Inodes matching InodeBlocks*InodesPerBlock.
// It does not check the magic number; see ValidateMagic.
func (sb Superblock) ValidateGeometry(deviceBlocks uint32) error {
	if sb.Blocks != deviceBlocks {
		return fmt.Errorf("superblock reports %d blocks, device has %d", sb.Blocks, deviceBlocks)
	}
	if sb.InodeBlocks != NumInodeBlocks(sb.Blocks) {
		return fmt.Errorf(
			"superblock reports %d inode blocks, expected ceil(%d/10)=%d",
			sb.InodeBlocks, sb.Blocks, NumInodeBlocks(sb.Blocks),
		)
	}
	if sb.Inodes != sb.InodeBlocks*InodesPerBlock {
		return fmt.Errorf(
			"superblock reports %d inodes, expected %d*%d=%d",
			sb.Inodes, sb.InodeBlocks, uint32(InodesPerBlock), sb.InodeBlocks*InodesPerBlock,
		)
	}
	return nil
}

// Validate checks both the magic number and the geometry, in that order. It
// exists for callers (and tests) that don't need to tell the two failure
// kinds apart; Mount uses ValidateMagic and ValidateGeometry separately so
// it can report the distinct errors.ErrBadMagic/errors.ErrBadGeometry
// sentinels.
func (sb Superblock) Validate(deviceBlocks uint32) error {
	if err := sb.ValidateMagic(); err != nil {
		return err
	}
	return sb.ValidateGeometry(deviceBlocks)
}

// Encode serializes the superblock into a full BlockSize-byte block, zero
// padded after the four header fields.
func (sb Superblock) Encode() []byte {
	buf := make([]byte, BlockSize)
	ByteOrder.PutUint32(buf[0:4], sb.MagicNumber)
	ByteOrder.PutUint32(buf[4:8], sb.Blocks)
	ByteOrder.PutUint32(buf[8:12], sb.InodeBlocks)
	ByteOrder.PutUint32(buf[12:16], sb.Inodes)
	return buf
}

// DecodeSuperblock parses a BlockSize-byte block 0 into a Superblock. It
// does not validate the result; call Validate separately.
func DecodeSuperblock(block []byte) (Superblock, error) {
	if len(block) < 16 {
		return Superblock{}, fmt.Errorf("superblock block too short: got %d bytes, want at least 16", len(block))
	}
	reader := bytes.NewReader(block[:16])

	var sb Superblock
	fields := []*uint32{&sb.MagicNumber, &sb.Blocks, &sb.InodeBlocks, &sb.Inodes}
	for _, field := range fields {
		if err := binary.Read(reader, ByteOrder, field); err != nil {
			return Superblock{}, err
		}
	}
	return sb, nil
}
