package assist

import (
	"strings"
	"testing"

	"voxelstudio.ai/internal/catalog"
	"voxelstudio.ai/internal/model"
)

func paletteCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(`[
		{"id":0,"name":"air","displayName":"Air"},
		{"id":1,"name":"stone_bricks","displayName":"Stone Bricks"},
		{"id":2,"name":"oak_planks","displayName":"Oak Planks"},
		{"id":3,"name":"glass_pane","displayName":"Glass Pane"},
		{"id":4,"name":"oak_stairs","displayName":"Oak Stairs"},
		{"id":5,"name":"lantern","displayName":"Lantern"},
		{"id":6,"name":"oak_door","displayName":"Oak Door"}
	]`), "")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func TestClassifyPalettes(t *testing.T) {
	c := paletteCatalog(t)
	got := map[string][]int{}
	for _, p := range ClassifyPalettes(c.Blocks) {
		got[p.Role] = p.IDs
	}
	if len(got["foundation"]) == 0 || got["foundation"][0] != 1 {
		t.Fatalf("foundation: %v", got["foundation"])
	}
	if len(got["windows"]) != 1 || got["windows"][0] != 3 {
		t.Fatalf("windows: %v", got["windows"])
	}
	// Non-exclusive: stairs match both roof and stairs.
	if len(got["roof"]) == 0 || len(got["stairs"]) == 0 {
		t.Fatalf("stairs not classified into both roles: roof=%v stairs=%v", got["roof"], got["stairs"])
	}
	if len(got["doors"]) != 1 || got["doors"][0] != 6 {
		t.Fatalf("doors: %v", got["doors"])
	}
	// Empty categories stay present but empty.
	if _, ok := got["slabs"]; !ok {
		t.Fatalf("slabs category missing from result")
	}
}

func TestDetectAir(t *testing.T) {
	c := paletteCatalog(t)
	id, ok := DetectAir(c.Blocks)
	if !ok || id != 0 {
		t.Fatalf("air: id=%d ok=%v", id, ok)
	}
	noAir, err := catalog.Parse([]byte(`[{"id":1,"name":"stone","displayName":"Stone"}]`), "")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if _, ok := DetectAir(noAir.Blocks); ok {
		t.Fatalf("air detected in catalog without one")
	}
}

func TestBuildPrompt_BoundsAndTruncation(t *testing.T) {
	c := paletteCatalog(t)
	p := BuildPrompt(PromptInput{Width: 8, Height: 6, LayerCount: 3, Catalog: c, CatalogCap: 4})
	if !strings.Contains(p, "0 <= x <= 7") || !strings.Contains(p, "0 <= z <= 5") || !strings.Contains(p, "0 <= y <= 2") {
		t.Fatalf("bounds missing:\n%s", p)
	}
	if !strings.Contains(p, "(list truncated at 4 entries)") {
		t.Fatalf("truncation marker missing")
	}
	if strings.Contains(p, "lantern") {
		t.Fatalf("entry beyond the cap leaked into the block list")
	}
	if !strings.Contains(p, `"instructions"`) {
		t.Fatalf("output contract missing")
	}
	if strings.Contains(p, "CURRENT BUILD STATE") {
		t.Fatalf("fresh-canvas prompt must not describe state")
	}
}

func TestBuildPrompt_StateSummary(t *testing.T) {
	c := paletteCatalog(t)
	b := model.NewBuild("hut", 4, 4)
	b.Layers[0].Name = "ground"
	b.Layers[0].Blocks[model.PosKey{X: 1, Z: 1}] = model.Placement{BlockID: 1, X: 1, Z: 1}
	p := BuildPrompt(PromptInput{Width: 4, Height: 4, Build: b, Catalog: c})
	if !strings.Contains(p, `layer 0 "ground": 1 blocks placed`) {
		t.Fatalf("state summary missing:\n%s", p)
	}
	if !strings.Contains(p, "positions you do not mention are preserved") {
		t.Fatalf("edit contract missing")
	}
	if !strings.Contains(p, "placing air (0) deletes it") {
		t.Fatalf("air deletion clause missing")
	}
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	c := paletteCatalog(t)
	in := PromptInput{Width: 5, Height: 5, LayerCount: 2, Catalog: c}
	if BuildPrompt(in) != BuildPrompt(in) {
		t.Fatalf("prompt is not a pure function of its input")
	}
}

func TestUserMessage(t *testing.T) {
	if UserMessage("a small hut") != "Build request: a small hut" {
		t.Fatalf("framing: %q", UserMessage("a small hut"))
	}
}
