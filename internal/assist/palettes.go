package assist

import (
	"strings"

	"voxelstudio.ai/internal/catalog"
)

// Category maps a structural role onto name patterns. Classification is
// substring-based and non-exclusive: one block may land in several roles.
type Category struct {
	Role     string
	Patterns []string
}

// Categories is data-driven so new roles are a table edit, not pipeline
// logic.
var Categories = []Category{
	{Role: "foundation", Patterns: []string{"stone", "brick", "cobble", "deepslate"}},
	{Role: "walls", Patterns: []string{"plank", "wood", "log", "stone", "brick"}},
	{Role: "windows", Patterns: []string{"glass", "pane"}},
	{Role: "roof", Patterns: []string{"slab", "stair", "tile", "shingle"}},
	{Role: "lighting", Patterns: []string{"torch", "lantern", "glow", "lamp"}},
	{Role: "stairs", Patterns: []string{"stair"}},
	{Role: "slabs", Patterns: []string{"slab"}},
	{Role: "doors", Patterns: []string{"door"}},
}

// PaletteSuggestion is one role with the catalog ids matched to it, in
// catalog order. IDs may be empty when nothing matches.
type PaletteSuggestion struct {
	Role string
	IDs  []int
}

// ClassifyPalettes groups blocks into role palettes by matching canonical
// and display names against the category patterns.
func ClassifyPalettes(blocks []catalog.Block) []PaletteSuggestion {
	out := make([]PaletteSuggestion, len(Categories))
	for i, c := range Categories {
		out[i].Role = c.Role
		for _, b := range blocks {
			name := strings.ToLower(b.Name)
			display := strings.ToLower(b.DisplayName)
			for _, pat := range c.Patterns {
				if strings.Contains(name, pat) || strings.Contains(display, pat) {
					out[i].IDs = append(out[i].IDs, b.ID)
					break
				}
			}
		}
	}
	return out
}

// DetectAir returns the air block id when the catalog carries one, either
// as id 0 or by name.
func DetectAir(blocks []catalog.Block) (int, bool) {
	for _, b := range blocks {
		if b.ID == 0 ||
			strings.EqualFold(b.Name, "air") ||
			strings.EqualFold(b.DisplayName, "air") {
			return b.ID, true
		}
	}
	return 0, false
}
