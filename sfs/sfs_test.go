package sfs_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-sfs/sfs/block"
	sfserrors "github.com/go-sfs/sfs/errors"
	"github.com/go-sfs/sfs/layout"
	"github.com/go-sfs/sfs/sfs"
	"github.com/go-sfs/sfs/sfstesting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRejectsMountedDevice(t *testing.T) {
	dev := block.NewMemoryDevice(20)
	dev.Mount()
	assert.Error(t, sfs.Format(dev))
}

func TestMountValidatesGeometry(t *testing.T) {
	dev := sfstesting.FormattedDevice(t, 20)

	fs, err := sfs.Mount(dev)
	require.NoError(t, err)
	defer fs.Unmount()

	assert.EqualValues(t, 20, fs.Blocks())
	assert.EqualValues(t, 2, fs.InodeBlocks())
	assert.EqualValues(t, 2*layout.InodesPerBlock, fs.Inodes())
	assert.True(t, dev.Mounted())
}

func TestMountFailsOnBadMagic(t *testing.T) {
	dev := block.NewMemoryDevice(20)
	// Never formatted: block 0 is all zeros, magic number is wrong.
	_, err := sfs.Mount(dev)
	assert.Error(t, err)
	assert.False(t, dev.Mounted())
}

func TestMountFailsOnBadGeometryDistinctFromBadMagic(t *testing.T) {
	dev := sfstesting.FormattedDevice(t, 20)

	// Corrupt the superblock's InodeBlocks field in place, leaving the
	// magic number untouched, so Mount must report ErrBadGeometry rather
	// than ErrBadMagic.
	sbBlock := make([]byte, layout.BlockSize)
	require.NoError(t, dev.Read(0, sbBlock))
	sb, err := layout.DecodeSuperblock(sbBlock)
	require.NoError(t, err)
	sb.InodeBlocks = 99
	require.NoError(t, dev.Write(0, sb.Encode()))

	_, err = sfs.Mount(dev)
	require.Error(t, err)
	assert.ErrorIs(t, err, sfserrors.ErrBadGeometry)
	assert.NotErrorIs(t, err, sfserrors.ErrBadMagic)
}

func TestMountFailsWhenAlreadyMounted(t *testing.T) {
	dev := sfstesting.FormattedDevice(t, 20)

	fs1, err := sfs.Mount(dev)
	require.NoError(t, err)
	defer fs1.Unmount()

	_, err = sfs.Mount(dev)
	assert.Error(t, err)
}

func TestEndToEndScenario(t *testing.T) {
	// Mirrors the worked example in the spec: a 20-block disk with
	// InodeBlocks=2, Inodes=256.
	dev := sfstesting.FormattedDevice(t, 20)

	fs, err := sfs.Mount(dev)
	require.NoError(t, err)
	defer fs.Unmount()

	var buf bytes.Buffer
	require.NoError(t, sfs.Debug(dev, &buf))
	assert.Contains(t, buf.String(), "20 blocks")
	assert.Contains(t, buf.String(), "2 inode blocks")
	assert.Contains(t, buf.String(), "256 inodes")
	assert.NotContains(t, buf.String(), "Inode ")

	first := fs.Create()
	assert.EqualValues(t, 0, first)
	assert.EqualValues(t, 0, fs.Stat(uint32(first)))

	second := fs.Create()
	assert.EqualValues(t, 1, second)

	n := fs.Write(uint32(first), []byte("hello"), 0)
	assert.EqualValues(t, 5, n)
	assert.EqualValues(t, 5, fs.Stat(uint32(first)))

	readBuf := make([]byte, 5)
	read := fs.Read(uint32(first), readBuf, 0)
	assert.EqualValues(t, 5, read)
	assert.Equal(t, "hello", string(readBuf))
}

func TestWriteAllocatesIndirectBlockAcrossBoundary(t *testing.T) {
	fs := sfstesting.MountedFileSystem(t, 20)

	inumber := fs.Create()
	require.GreaterOrEqual(t, inumber, int64(0))

	payload := bytes.Repeat([]byte{0xAB}, layout.BlockSize*6)
	written := fs.Write(uint32(inumber), payload, 0)
	assert.EqualValues(t, len(payload), written)
	assert.EqualValues(t, len(payload), fs.Stat(uint32(inumber)))

	readBack := make([]byte, len(payload))
	n := fs.Read(uint32(inumber), readBack, 0)
	assert.EqualValues(t, len(payload), n)
	assert.Equal(t, payload, readBack)

	require.NoError(t, fs.Fsck())
}

func TestWriteRejectsOffsetPastEnd(t *testing.T) {
	fs := sfstesting.MountedFileSystem(t, 20)

	inumber := fs.Create()
	assert.EqualValues(t, -1, fs.Write(uint32(inumber), []byte("x"), 100))
}

func TestReadZeroLengthAtEOFDoesNotFail(t *testing.T) {
	fs := sfstesting.MountedFileSystem(t, 20)

	inumber := fs.Create()
	written := fs.Write(uint32(inumber), []byte("abc"), 0)
	require.EqualValues(t, 3, written)

	out := make([]byte, 0)
	assert.EqualValues(t, 0, fs.Read(uint32(inumber), out, 3))
}

func TestReadRejectsOffsetPastEnd(t *testing.T) {
	fs := sfstesting.MountedFileSystem(t, 20)

	inumber := fs.Create()
	out := make([]byte, 10)
	assert.EqualValues(t, -1, fs.Read(uint32(inumber), out, 1))
}

func TestStatAndReadOfInvalidInodeFail(t *testing.T) {
	fs := sfstesting.MountedFileSystem(t, 20)

	assert.EqualValues(t, -1, fs.Stat(5))
	out := make([]byte, 10)
	assert.EqualValues(t, -1, fs.Read(5, out, 0))
	assert.EqualValues(t, -1, fs.Write(5, []byte("x"), 0))
}

func TestRemoveFreesBlocksAndReusesInumber(t *testing.T) {
	fs := sfstesting.MountedFileSystem(t, 20)

	inumber := fs.Create()
	payload := bytes.Repeat([]byte{1}, layout.BlockSize*6)
	written := fs.Write(uint32(inumber), payload, 0)
	require.EqualValues(t, len(payload), written)

	require.True(t, fs.Remove(uint32(inumber)))
	require.NoError(t, fs.Fsck())

	again := fs.Create()
	assert.Equal(t, inumber, again)
}

func TestRemoveOfAlreadyRemovedInumberFails(t *testing.T) {
	fs := sfstesting.MountedFileSystem(t, 20)

	inumber := fs.Create()
	require.True(t, fs.Remove(uint32(inumber)))
	assert.False(t, fs.Remove(uint32(inumber)))
}

func TestCreateFailsWhenInodeTableFull(t *testing.T) {
	fs := sfstesting.MountedFileSystem(t, 20)

	var last int64
	for i := uint32(0); i < fs.Inodes(); i++ {
		last = fs.Create()
		require.GreaterOrEqual(t, last, int64(0))
	}
	assert.EqualValues(t, fs.Inodes()-1, last)
	assert.EqualValues(t, -1, fs.Create())
}

func TestWriteShortCountOnDiskFull(t *testing.T) {
	// A tiny disk: superblock + 1 inode block + only a handful of data
	// blocks, so a single file can exhaust all free space.
	fs := sfstesting.MountedFileSystem(t, 5)

	inumber := fs.Create()
	big := bytes.Repeat([]byte{0x7A}, layout.BlockSize*10)
	written := fs.Write(uint32(inumber), big, 0)

	assert.Less(t, written, int64(len(big)))
	assert.EqualValues(t, written, fs.Stat(uint32(inumber)))
	require.NoError(t, fs.Fsck())
}

func TestDebugReportsInvalidMagicWithoutMounting(t *testing.T) {
	dev := block.NewMemoryDevice(20)
	var buf bytes.Buffer
	require.NoError(t, sfs.Debug(dev, &buf))
	assert.True(t, strings.Contains(buf.String(), "INVALID"))
}

func TestOperationsFailAfterUnmount(t *testing.T) {
	dev := sfstesting.FormattedDevice(t, 20)
	fs, err := sfs.Mount(dev)
	require.NoError(t, err)

	inumber := fs.Create()
	require.GreaterOrEqual(t, inumber, int64(0))

	fs.Unmount()

	assert.EqualValues(t, -1, fs.Create())
	assert.EqualValues(t, -1, fs.Stat(uint32(inumber)))
	out := make([]byte, 1)
	assert.EqualValues(t, -1, fs.Read(uint32(inumber), out, 0))
	assert.EqualValues(t, -1, fs.Write(uint32(inumber), []byte("x"), 0))
	assert.False(t, fs.Remove(uint32(inumber)))
	assert.ErrorIs(t, fs.Fsck(), sfserrors.ErrNotMounted)
}

func TestFsckDetectsTamperedBitmap(t *testing.T) {
	dev := sfstesting.FormattedDevice(t, 20)
	fs, err := sfs.Mount(dev)
	require.NoError(t, err)
	defer fs.Unmount()

	inumber := fs.Create()
	written := fs.Write(uint32(inumber), bytes.Repeat([]byte{0x5A}, layout.BlockSize), 0)
	require.EqualValues(t, layout.BlockSize, written)
	require.NoError(t, fs.Fsck())

	// Corrupt the on-disk inode directly, dropping its only direct pointer
	// without going through Remove. The live in-memory bitmap still marks
	// that block used (nothing told it otherwise), but a fresh scan of the
	// inode graph no longer reaches it, so the two must now disagree.
	blockIdx, slot := layout.InodeBlock(uint32(inumber))
	raw := make([]byte, layout.BlockSize)
	require.NoError(t, dev.Read(1+blockIdx, raw))

	offset := int(slot) * layout.InodeRecordSize
	rec, err := layout.DecodeInodeRecord(raw[offset : offset+layout.InodeRecordSize])
	require.NoError(t, err)
	require.NotZero(t, rec.Direct[0])

	rec.Direct[0] = 0
	copy(raw[offset:offset+layout.InodeRecordSize], rec.Encode())
	require.NoError(t, dev.Write(1+blockIdx, raw))

	err = fs.Fsck()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "disagrees with reconstruction")
}
