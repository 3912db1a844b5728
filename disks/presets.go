// Package disks gives a small table of named block-count presets for
// quickly creating an SFS image, analogous to a floppy-geometry table but
// expressed in SFS blocks rather than disk geometry.
package disks

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
)

// Preset names one predefined image size.
type Preset struct {
	Slug   string `csv:"slug"`
	Name   string `csv:"name"`
	Blocks uint32 `csv:"blocks"`
	Notes  string `csv:"notes"`
}

//go:embed presets.csv
var presetsRawCSV string

var presetsBySlug map[string]Preset

func init() {
	presetsBySlug = make(map[string]Preset)

	reader := strings.NewReader(presetsRawCSV)
	err := gocsv.UnmarshalToCallback(reader, func(row Preset) error {
		if _, exists := presetsBySlug[row.Slug]; exists {
			return fmt.Errorf("duplicate preset slug %q", row.Slug)
		}
		presetsBySlug[row.Slug] = row
		return nil
	})
	if err != nil {
		panic(fmt.Sprintf("disks: failed to parse embedded presets: %s", err))
	}
}

// Get returns the preset registered under slug, or an error if no such
// preset exists.
func Get(slug string) (Preset, error) {
	preset, ok := presetsBySlug[slug]
	if !ok {
		return Preset{}, fmt.Errorf("disks: no preset named %q", slug)
	}
	return preset, nil
}

// Slugs returns the names of every registered preset.
func Slugs() []string {
	slugs := make([]string, 0, len(presetsBySlug))
	for slug := range presetsBySlug {
		slugs = append(slugs, slug)
	}
	return slugs
}
