package block

import (
	"io"

	"github.com/go-sfs/sfs/layout"
	"github.com/xaionaro-go/bytesextra"
)

// MemoryDevice is a block device backed by a fixed-size in-memory buffer.
// It's useful for unit tests and for throwaway images that never need to
// touch disk. Its size is fixed at construction time; writes past the end
// of the backing buffer fail the same way they would on a file device that
// was sized too small.
type MemoryDevice struct {
	stream      io.ReadWriteSeeker
	totalBlocks uint32
	mountCount  int
}

// NewMemoryDevice allocates a zeroed in-memory device of totalBlocks
// blocks.
func NewMemoryDevice(totalBlocks uint32) *MemoryDevice {
	buf := make([]byte, int64(totalBlocks)*int64(layout.BlockSize))
	return &MemoryDevice{
		stream:      bytesextra.NewReadWriteSeeker(buf),
		totalBlocks: totalBlocks,
	}
}

// NewMemoryDeviceFromBytes wraps an existing byte slice (whose length must
// be an exact multiple of BlockSize) as a Device, useful for loading a
// previously-saved image into memory for fast, disposable mutation.
func NewMemoryDeviceFromBytes(data []byte) *MemoryDevice {
	totalBlocks := uint32(len(data) / layout.BlockSize)
	return &MemoryDevice{
		stream:      bytesextra.NewReadWriteSeeker(data),
		totalBlocks: totalBlocks,
	}
}

func (d *MemoryDevice) Size() uint32 {
	return d.totalBlocks
}

func (d *MemoryDevice) Read(index uint32, buf []byte) error {
	checkBounds(index, buf, d.totalBlocks)
	return seekAndTransfer(d.stream, index, func() (int, error) {
		return io.ReadFull(d.stream, buf)
	})
}

func (d *MemoryDevice) Write(index uint32, buf []byte) error {
	checkBounds(index, buf, d.totalBlocks)
	return seekAndTransfer(d.stream, index, func() (int, error) {
		return d.stream.Write(buf)
	})
}

func (d *MemoryDevice) Mount() {
	d.mountCount++
}

func (d *MemoryDevice) Unmount() {
	if d.mountCount > 0 {
		d.mountCount--
	}
}

func (d *MemoryDevice) Mounted() bool {
	return d.mountCount > 0
}
