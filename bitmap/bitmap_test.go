package bitmap_test

import (
	"testing"

	"github.com/go-sfs/sfs/bitmap"
	"github.com/go-sfs/sfs/block"
	"github.com/go-sfs/sfs/layout"
	"github.com/go-sfs/sfs/sfstesting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBitmapAllFree(t *testing.T) {
	b := bitmap.New(10)
	for i := uint32(0); i < 10; i++ {
		assert.True(t, b.IsFree(i))
	}
}

func TestAllocateFirstFit(t *testing.T) {
	dev := sfstesting.FormattedDevice(t, 5)
	b := bitmap.New(5)

	idx, err := b.Allocate(dev)
	require.NoError(t, err)
	assert.EqualValues(t, 0, idx)
	assert.False(t, b.IsFree(0))

	idx, err = b.Allocate(dev)
	require.NoError(t, err)
	assert.EqualValues(t, 1, idx)
}

func TestAllocateZeroesBlock(t *testing.T) {
	dev := sfstesting.FormattedDevice(t, 2)
	dirty := make([]byte, layout.BlockSize)
	dirty[0] = 0xff
	require.NoError(t, dev.Write(0, dirty))

	b := bitmap.New(2)

	idx, err := b.Allocate(dev)
	require.NoError(t, err)
	assert.EqualValues(t, 0, idx)

	out := make([]byte, layout.BlockSize)
	require.NoError(t, dev.Read(0, out))
	assert.Equal(t, make([]byte, layout.BlockSize), out)
}

func TestAllocateExhaustion(t *testing.T) {
	dev := sfstesting.FormattedDevice(t, 2)
	b := bitmap.New(2)

	_, err := b.Allocate(dev)
	require.NoError(t, err)
	_, err = b.Allocate(dev)
	require.NoError(t, err)

	_, err = b.Allocate(dev)
	assert.Error(t, err)
}

func TestReleaseThenAllocateReusesLowestIndex(t *testing.T) {
	dev := sfstesting.FormattedDevice(t, 3)
	b := bitmap.New(3)

	first, err := b.Allocate(dev)
	require.NoError(t, err)
	second, err := b.Allocate(dev)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	require.NoError(t, b.Release(first))

	third, err := b.Allocate(dev)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestReleaseOutOfRange(t *testing.T) {
	b := bitmap.New(4)
	assert.Error(t, b.Release(10))
}

func TestEqualAndDiff(t *testing.T) {
	a := bitmap.New(4)
	c := bitmap.New(4)
	assert.True(t, a.Equal(c))
	assert.Empty(t, a.Diff(c))

	dev := sfstesting.FormattedDevice(t, 4)
	_, err := c.Allocate(dev)
	require.NoError(t, err)

	assert.False(t, a.Equal(c))
}

// buildImageWithOneFileBlock writes a minimal valid superblock and inode
// table with a single valid inode referencing one data block, for
// Reconstruct to walk.
func buildImageWithOneFileBlock(t *testing.T) (*block.MemoryDevice, uint32, uint32) {
	t.Helper()

	const totalBlocks = 20
	dev := block.NewMemoryDevice(totalBlocks)
	sb := layout.NewSuperblock(totalBlocks)
	require.NoError(t, dev.Write(0, sb.Encode()))

	inodeBlockBuf := make([]byte, layout.BlockSize)
	rec := layout.InodeRecord{Valid: 1, Size: 4096, Direct: [layout.PointersPerInode]uint32{1 + sb.InodeBlocks, 0, 0, 0, 0}}
	copy(inodeBlockBuf[0:layout.InodeRecordSize], rec.Encode())
	require.NoError(t, dev.Write(1, inodeBlockBuf))

	for i := uint32(2); i < 1+sb.InodeBlocks; i++ {
		require.NoError(t, dev.Write(i, make([]byte, layout.BlockSize)))
	}

	return dev, sb.InodeBlocks, sb.Inodes
}

func TestReconstructMarksReservedAndReachableBlocks(t *testing.T) {
	dev, inodeBlocks, inodeCount := buildImageWithOneFileBlock(t)

	b, err := bitmap.Reconstruct(dev, inodeBlocks, inodeCount)
	require.NoError(t, err)

	assert.False(t, b.IsFree(0), "superblock must be reserved")
	for i := uint32(0); i < inodeBlocks; i++ {
		assert.False(t, b.IsFree(1+i), "inode table block %d must be reserved", i)
	}

	dataStart := 1 + inodeBlocks
	assert.False(t, b.IsFree(dataStart), "referenced data block must be used")
	assert.True(t, b.IsFree(dataStart+1), "unreferenced data block must be free")
}
