package block

import (
	"fmt"
	"io"
	"os"

	"github.com/go-sfs/sfs/layout"
)

// FileDevice is a block device backed by a real file on the host
// filesystem. It opens the file once and keeps the handle for the lifetime
// of the device.
type FileDevice struct {
	file        *os.File
	totalBlocks uint32
	mountCount  int
}

// OpenFileDevice opens path (creating it if create is true) and wraps it as
// a Device with the given total block count. The file must already be at
// least totalBlocks*BlockSize bytes long unless create is set, in which case
// it is truncated/extended to that size.
func OpenFileDevice(path string, totalBlocks uint32, create bool) (*FileDevice, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("block: failed to open %q: %w", path, err)
	}

	size := int64(totalBlocks) * int64(layout.BlockSize)
	if create {
		if err := file.Truncate(size); err != nil {
			file.Close()
			return nil, fmt.Errorf("block: failed to size %q to %d bytes: %w", path, size, err)
		}
	} else {
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, err
		}
		if info.Size() < size {
			file.Close()
			return nil, fmt.Errorf(
				"block: %q is %d bytes, too small for %d blocks of %d bytes",
				path, info.Size(), totalBlocks, layout.BlockSize)
		}
	}

	return &FileDevice{file: file, totalBlocks: totalBlocks}, nil
}

// Close releases the underlying file handle. It does not check the mount
// counter; callers should Unmount first.
func (d *FileDevice) Close() error {
	return d.file.Close()
}

func (d *FileDevice) Size() uint32 {
	return d.totalBlocks
}

func (d *FileDevice) Read(index uint32, buf []byte) error {
	checkBounds(index, buf, d.totalBlocks)
	return seekAndTransfer(d.file, index, func() (int, error) {
		return io.ReadFull(d.file, buf)
	})
}

func (d *FileDevice) Write(index uint32, buf []byte) error {
	checkBounds(index, buf, d.totalBlocks)
	return seekAndTransfer(d.file, index, func() (int, error) {
		return d.file.Write(buf)
	})
}

func (d *FileDevice) Mount() {
	d.mountCount++
}

func (d *FileDevice) Unmount() {
	if d.mountCount > 0 {
		d.mountCount--
	}
}

func (d *FileDevice) Mounted() bool {
	return d.mountCount > 0
}
