// Package export maps a layered sparse build into a flat indexed-palette
// structure file.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"voxelstudio.ai/internal/catalog"
	"voxelstudio.ai/internal/model"
)

const (
	Format  = "voxelstudio.structure"
	Version = 1

	// AirName is palette index 0 in every structure file, referenced or not.
	AirName = "air"
)

// Structure is the file document: declared format metadata, overall size,
// the flat block-index array and the name palette.
type Structure struct {
	Format  string         `json:"format"`
	Version int            `json:"version"`
	Name    string         `json:"name"`
	Size    [3]int         `json:"size"` // width, layer count, height
	Blocks  []int          `json:"blocks"`
	Palette map[string]int `json:"palette"`
}

// FromBuild flattens the build. Cell (x, y, z) lands at
// y*(width*height) + z*width + x; palette indices are assigned at first
// sight with air pinned to 0. Placements outside the x/z extents (stale
// after a shrink) are skipped.
func FromBuild(b *model.Build, cat *catalog.Catalog) *Structure {
	w, h := b.Width, b.Height
	layers := len(b.Layers)

	s := &Structure{
		Format:  Format,
		Version: Version,
		Name:    b.Name,
		Size:    [3]int{w, layers, h},
		Blocks:  make([]int, w*h*layers),
		Palette: map[string]int{AirName: 0},
	}

	next := 1
	for y, l := range b.Layers {
		for k, p := range l.Blocks {
			if k.X < 0 || k.X >= w || k.Z < 0 || k.Z >= h {
				continue
			}
			name := blockName(cat, p.BlockID)
			idx, ok := s.Palette[name]
			if !ok {
				idx = next
				s.Palette[name] = idx
				next++
			}
			s.Blocks[y*(w*h)+k.Z*w+k.X] = idx
		}
	}
	return s
}

// blockName resolves an id through the catalog; unknown ids keep a stable
// synthetic name so the file remains loadable.
func blockName(cat *catalog.Catalog, id int) string {
	if blk, ok := cat.Lookup(id); ok {
		return blk.Name
	}
	return fmt.Sprintf("block_%d", id)
}

// Filename derives a download name from the build name: non-alphanumerics
// collapse to underscores.
func Filename(buildName string) string {
	var sb strings.Builder
	for _, r := range buildName {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	name := sb.String()
	if name == "" {
		name = "build"
	}
	return name + ".structure.json"
}

// WriteFile writes the document to path, zstd-compressed when the path ends
// in .zst.
func WriteFile(path string, s *Structure) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if !strings.HasSuffix(path, ".zst") {
		return os.WriteFile(path, raw, 0o644)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	if _, err := enc.Write(raw); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
