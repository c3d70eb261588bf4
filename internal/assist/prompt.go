package assist

import (
	"fmt"
	"strings"

	"voxelstudio.ai/internal/catalog"
	"voxelstudio.ai/internal/model"
)

// DefaultCatalogCap bounds how many catalog entries the instruction document
// shows the model. Validation of the reply always runs against the full
// catalog, never this prefix.
const DefaultCatalogCap = 110

// userFraming prefixes the literal request in the user message.
const userFraming = "Build request: "

// PromptInput carries everything BuildPrompt reads. Build is optional: when
// nil (or empty) the prompt describes a fresh canvas.
type PromptInput struct {
	Width      int
	Height     int
	LayerCount int
	Build      *model.Build
	Catalog    *catalog.Catalog
	CatalogCap int
}

// UserMessage wraps the literal request with the fixed framing phrase.
func UserMessage(request string) string {
	return userFraming + request
}

// BuildPrompt renders the system instruction document: coordinate system and
// bounds, the truncated block list, palette suggestions, the current-state
// summary when a build is supplied, the design protocol and the strict
// output contract. It is a pure function of its input.
func BuildPrompt(in PromptInput) string {
	limit := in.CatalogCap
	if limit <= 0 {
		limit = DefaultCatalogCap
	}
	layerCount := in.LayerCount
	if in.Build != nil {
		layerCount = len(in.Build.Layers)
	}
	if layerCount < 1 {
		layerCount = 1
	}

	maxX := in.Width - 1
	maxY := layerCount - 1
	maxZ := in.Height - 1

	var b strings.Builder

	b.WriteString("You are a voxel build designer for a layered block grid editor.\n")
	b.WriteString("Your job: turn the user's request into concrete block placements.\n\n")

	b.WriteString("COORDINATE SYSTEM\n")
	b.WriteString("- x runs west to east, z runs north to south, y is the layer index from the ground up.\n")
	fmt.Fprintf(&b, "- Bounds are inclusive: 0 <= x <= %d, 0 <= z <= %d, 0 <= y <= %d.\n\n", maxX, maxZ, maxY)

	b.WriteString("AVAILABLE BLOCKS (id: display name (name))\n")
	blocks := in.Catalog.Blocks
	truncated := false
	if len(blocks) > limit {
		blocks = blocks[:limit]
		truncated = true
	}
	for _, blk := range blocks {
		fmt.Fprintf(&b, "%d: %s (%s)\n", blk.ID, blk.DisplayName, blk.Name)
	}
	if truncated {
		fmt.Fprintf(&b, "(list truncated at %d entries)\n", limit)
	}
	b.WriteString("\n")

	b.WriteString("SUGGESTED PALETTES\n")
	for _, p := range ClassifyPalettes(blocks) {
		if len(p.IDs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", p.Role, joinInts(p.IDs))
	}
	if airID, ok := DetectAir(in.Catalog.Blocks); ok {
		fmt.Fprintf(&b, "- air (deletes a block): %d\n", airID)
	}
	b.WriteString("\n")

	if in.Build != nil && len(in.Build.Layers) > 0 {
		b.WriteString("CURRENT BUILD STATE\n")
		for i, l := range in.Build.Layers {
			fmt.Fprintf(&b, "- layer %d %q: %d blocks placed\n", i, l.Name, len(l.Blocks))
		}
		b.WriteString("Edit contract: positions you do not mention are preserved; ")
		b.WriteString("placing a block at an occupied position replaces it")
		if airID, ok := DetectAir(in.Catalog.Blocks); ok {
			fmt.Fprintf(&b, "; placing air (%d) deletes it", airID)
		}
		b.WriteString("; new layers may be appended within the y bound.\n\n")
	}

	b.WriteString("DESIGN PROTOCOL\n")
	b.WriteString("- Plan the footprint and the height before placing anything.\n")
	b.WriteString("- Build bottom-up: foundation, then walls, then roof.\n")
	b.WriteString("- Prefer symmetry; center doors and windows on their walls.\n")
	b.WriteString("- Place the perimeter of each layer before any fill.\n")
	b.WriteString("- Sort the output by y, then z, then x.\n\n")

	b.WriteString("OUTPUT CONTRACT\n")
	b.WriteString("Reply with a single JSON object and nothing else. Required field:\n")
	b.WriteString(`  "instructions": array of {"x","y","z","blockId","blockName"}` + "\n")
	b.WriteString("Optional fields: \"explanation\", \"plan\", \"layers\".\n")
	b.WriteString("Every instruction must lie within bounds, be deduplicated, and use only block ids from the list above.\n")

	return b.String()
}

func joinInts(ids []int) string {
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d", id)
	}
	return b.String()
}
