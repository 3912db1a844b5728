package disks_test

import (
	"testing"

	"github.com/go-sfs/sfs/disks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetKnownPreset(t *testing.T) {
	preset, err := disks.Get("tiny")
	require.NoError(t, err)
	assert.EqualValues(t, 20, preset.Blocks)
}

func TestGetUnknownPreset(t *testing.T) {
	_, err := disks.Get("nonexistent")
	assert.Error(t, err)
}

func TestSlugsIncludesAllPresets(t *testing.T) {
	slugs := disks.Slugs()
	assert.Contains(t, slugs, "tiny")
	assert.Contains(t, slugs, "small")
	assert.Contains(t, slugs, "medium")
	assert.Contains(t, slugs, "large")
}
