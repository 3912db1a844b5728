// Package block defines the fixed-size block device contract SFS is
// layered on top of, and two concrete implementations: a file-backed device
// for real images and an in-memory device for tests and scratch images.
//
// Per the core's stated resource model, every read and write here is
// synchronous and reliable: the device either transfers exactly BlockSize
// bytes or fails. Out-of-range block indices are treated as fatal
// programmer errors, matching the reference disk emulator's contract.
package block

import (
	"fmt"
	"io"

	"github.com/go-sfs/sfs/layout"
)

// Device is the block device contract the core filesystem depends on. It
// never reports partial reads or writes; on success exactly BlockSize bytes
// were transferred.
type Device interface {
	// Size returns the total number of blocks on the device.
	Size() uint32

	// Read fills buf (which must be exactly layout.BlockSize bytes long)
	// with the contents of block index.
	Read(index uint32, buf []byte) error

	// Write stores buf (which must be exactly layout.BlockSize bytes long)
	// as the contents of block index.
	Write(index uint32, buf []byte) error

	// Mount increments the device's mount counter.
	Mount()

	// Unmount decrements the device's mount counter.
	Unmount()

	// Mounted reports whether the device currently has an active mount.
	Mounted() bool
}

// checkBounds validates a block index and buffer length against a device of
// the given block count. It panics on violation: per the package doc, an
// out-of-range index or malformed buffer is a fatal device-level error, not
// one the core is expected to recover from.
func checkBounds(index uint32, buf []byte, totalBlocks uint32) {
	if buf == nil {
		panic("block: nil buffer passed to device I/O")
	}
	if len(buf) != layout.BlockSize {
		panic(fmt.Sprintf(
			"block: buffer must be exactly %d bytes, got %d", layout.BlockSize, len(buf)))
	}
	if index >= totalBlocks {
		panic(fmt.Sprintf(
			"block: index %d out of range [0, %d)", index, totalBlocks))
	}
}

// seekAndTransfer seeks stream to block index's byte offset and then runs
// transfer (a Read or Write closure) against exactly BlockSize bytes.
func seekAndTransfer(stream io.Seeker, index uint32, transfer func() (int, error)) error {
	offset := int64(index) * int64(layout.BlockSize)
	if _, err := stream.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	n, err := transfer()
	if err != nil {
		return err
	}
	if n != layout.BlockSize {
		return fmt.Errorf("block: short transfer: got %d bytes, want %d", n, layout.BlockSize)
	}
	return nil
}
