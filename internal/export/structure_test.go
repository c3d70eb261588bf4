package export

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"voxelstudio.ai/internal/catalog"
	"voxelstudio.ai/internal/model"
)

func exportCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(`[
		{"id":1,"name":"stone","displayName":"Stone"},
		{"id":2,"name":"oak_planks","displayName":"Oak Planks"}
	]`), "")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func TestFromBuild_PaletteAndIndexing(t *testing.T) {
	b := model.NewBuild("Test Build", 3, 2)
	b.Layers[0].Blocks[model.PosKey{X: 1, Z: 0}] = model.Placement{BlockID: 1, X: 1, Z: 0}
	b.Layers = append(b.Layers, model.NewLayer("Layer 2"))
	b.Layers[1].Blocks[model.PosKey{X: 2, Z: 1}] = model.Placement{BlockID: 2, X: 2, Y: 1, Z: 1}

	s := FromBuild(b, exportCatalog(t))

	if s.Format != Format || s.Version != Version {
		t.Fatalf("metadata: %+v", s)
	}
	if s.Size != [3]int{3, 2, 2} {
		t.Fatalf("size: %v", s.Size)
	}
	if len(s.Blocks) != 3*2*2 {
		t.Fatalf("flat array length %d", len(s.Blocks))
	}
	// Air + 2 distinct block names.
	if len(s.Palette) != 3 || s.Palette[AirName] != 0 {
		t.Fatalf("palette: %v", s.Palette)
	}
	if got := s.Blocks[0*(3*2)+0*3+1]; got != s.Palette["stone"] {
		t.Fatalf("stone index: %d palette=%v", got, s.Palette)
	}
	if got := s.Blocks[1*(3*2)+1*3+2]; got != s.Palette["oak_planks"] {
		t.Fatalf("planks index: %d palette=%v", got, s.Palette)
	}
	filled := 0
	for _, v := range s.Blocks {
		if v != 0 {
			filled++
		}
	}
	if filled != 2 {
		t.Fatalf("unreferenced cells must stay 0, filled=%d", filled)
	}
}

func TestFromBuild_SkipsStaleOutOfBounds(t *testing.T) {
	b := model.NewBuild("shrunk", 2, 2)
	b.Layers[0].Blocks[model.PosKey{X: 5, Z: 5}] = model.Placement{BlockID: 1, X: 5, Z: 5}
	s := FromBuild(b, exportCatalog(t))
	for _, v := range s.Blocks {
		if v != 0 {
			t.Fatalf("stale placement exported")
		}
	}
	if len(s.Palette) != 1 {
		t.Fatalf("stale placement registered a palette entry: %v", s.Palette)
	}
}

func TestFromBuild_UnknownIDKeepsSyntheticName(t *testing.T) {
	b := model.NewBuild("u", 2, 2)
	b.Layers[0].Blocks[model.PosKey{}] = model.Placement{BlockID: 42}
	s := FromBuild(b, exportCatalog(t))
	if _, ok := s.Palette["block_42"]; !ok {
		t.Fatalf("palette: %v", s.Palette)
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("My Castle #2!"); got != "My_Castle__2_.structure.json" {
		t.Fatalf("Filename: %q", got)
	}
	if got := Filename(""); got != "build.structure.json" {
		t.Fatalf("empty name: %q", got)
	}
}

func TestWriteFile_PlainAndCompressed(t *testing.T) {
	dir := t.TempDir()
	b := model.NewBuild("w", 2, 2)
	b.Layers[0].Blocks[model.PosKey{}] = model.Placement{BlockID: 1}
	s := FromBuild(b, exportCatalog(t))

	plain := filepath.Join(dir, "w.structure.json")
	if err := WriteFile(plain, s); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	raw, err := os.ReadFile(plain)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got Structure
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Format != Format {
		t.Fatalf("format: %q", got.Format)
	}

	packed := filepath.Join(dir, "w.structure.json.zst")
	if err := WriteFile(packed, s); err != nil {
		t.Fatalf("WriteFile zst: %v", err)
	}
	f, err := os.Open(packed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd.NewReader: %v", err)
	}
	defer dec.Close()
	unpacked, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(unpacked, raw) {
		t.Fatalf("compressed payload differs from plain file")
	}
}
