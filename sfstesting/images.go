// Package sfstesting provides small helpers for building and mounting
// throwaway SFS images in tests.
package sfstesting

import (
	"testing"

	"github.com/go-sfs/sfs/block"
	"github.com/go-sfs/sfs/sfs"
	"github.com/stretchr/testify/require"
)

// FormattedDevice returns a fresh in-memory device of totalBlocks blocks,
// already formatted.
func FormattedDevice(t *testing.T, totalBlocks uint32) *block.MemoryDevice {
	t.Helper()

	dev := block.NewMemoryDevice(totalBlocks)
	require.NoError(t, sfs.Format(dev))
	return dev
}

// MountedFileSystem formats and mounts a fresh in-memory device of
// totalBlocks blocks, registering a cleanup to unmount it when the test
// ends.
func MountedFileSystem(t *testing.T, totalBlocks uint32) *sfs.FileSystem {
	t.Helper()

	dev := FormattedDevice(t, totalBlocks)
	fs, err := sfs.Mount(dev)
	require.NoError(t, err)

	t.Cleanup(fs.Unmount)
	return fs
}
