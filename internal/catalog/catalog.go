// Package catalog loads and indexes the block definitions available to the
// editor.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Block is one catalog entry. IDs are unique; id 0 conventionally denotes
// air and never appears as a stored placement.
type Block struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Material    string `json:"material,omitempty"`
	Light       int    `json:"light,omitempty"`
	Transparent bool   `json:"transparent,omitempty"`
	Texture     string `json:"texture,omitempty"`
}

// Catalog is an ordered block list plus an id index. Order is the source
// order and is what Filtered preserves.
type Catalog struct {
	Blocks []Block
	byID   map[int]Block

	Digest string
}

const blocksSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id", "name", "displayName"],
		"properties": {
			"id": {"type": "integer", "minimum": 0},
			"name": {"type": "string", "minLength": 1},
			"displayName": {"type": "string", "minLength": 1},
			"material": {"type": "string"},
			"light": {"type": "integer"},
			"transparent": {"type": "boolean"},
			"texture": {"type": "string"}
		}
	}
}`

var compiledBlocksSchema = jsonschema.MustCompileString("blocks.schema.json", blocksSchema)

// missingTexture marks placeholder entries the texture pipeline could not
// resolve; they are dropped at load time.
const missingTexture = "missing_texture.png"

// Load reads a JSON block list from path. textureBase, when non-empty, is
// prefixed onto relative texture references.
func Load(path, textureBase string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(raw, textureBase)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse builds a catalog from raw JSON, validating shape, dropping
// missing-texture placeholders and absolutizing texture references.
func Parse(raw []byte, textureBase string) (*Catalog, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("blocks json: %w", err)
	}
	if err := compiledBlocksSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("blocks json: %w", err)
	}

	var defs []Block
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("blocks json: %w", err)
	}

	c := &Catalog{byID: map[int]Block{}}
	sum := sha256.Sum256(raw)
	c.Digest = hex.EncodeToString(sum[:])

	for _, d := range defs {
		if strings.HasSuffix(d.Texture, missingTexture) {
			continue
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("blocks json: duplicate id %d", d.ID)
		}
		if d.Texture != "" && !strings.Contains(d.Texture, "://") && !strings.HasPrefix(d.Texture, "/") {
			d.Texture = strings.TrimSuffix(textureBase, "/") + "/" + d.Texture
		}
		c.byID[d.ID] = d
		c.Blocks = append(c.Blocks, d)
	}
	return c, nil
}

// Lookup returns the block for id, if known.
func (c *Catalog) Lookup(id int) (Block, bool) {
	b, ok := c.byID[id]
	return b, ok
}

// KnownID reports whether id may appear in a placement. Air is always known
// even when the catalog carries no explicit air entry.
func (c *Catalog) KnownID(id int) bool {
	if id == 0 {
		return true
	}
	_, ok := c.byID[id]
	return ok
}

// Filtered returns the blocks whose display name or canonical name contains
// term, case-insensitively, in catalog order. An empty term returns all.
func (c *Catalog) Filtered(term string) []Block {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		out := make([]Block, len(c.Blocks))
		copy(out, c.Blocks)
		return out
	}
	var out []Block
	for _, b := range c.Blocks {
		if strings.Contains(strings.ToLower(b.DisplayName), term) ||
			strings.Contains(strings.ToLower(b.Name), term) {
			out = append(out, b)
		}
	}
	return out
}

// Len returns the catalog size.
func (c *Catalog) Len() int { return len(c.Blocks) }
