// Package model holds the build/layer data model shared by the editor,
// the assist pipeline and the exporter.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AirID is the sentinel block id for "no block". Placing air deletes the
// entry; air is never stored in a layer's block map.
const AirID = 0

// PosKey addresses one cell inside a layer.
type PosKey struct {
	X int
	Z int
}

func (k PosKey) String() string {
	return strconv.Itoa(k.X) + "," + strconv.Itoa(k.Z)
}

// ParsePosKey parses the wire form "x,z".
func ParsePosKey(s string) (PosKey, error) {
	i := strings.IndexByte(s, ',')
	if i < 0 {
		return PosKey{}, fmt.Errorf("pos key %q: missing comma", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(s[:i]))
	if err != nil {
		return PosKey{}, fmt.Errorf("pos key %q: %w", s, err)
	}
	z, err := strconv.Atoi(strings.TrimSpace(s[i+1:]))
	if err != nil {
		return PosKey{}, fmt.Errorf("pos key %q: %w", s, err)
	}
	return PosKey{X: x, Z: z}, nil
}

// Placement is the canonical placement record. Legacy bare-id cells are
// normalized into this shape at the JSON boundary.
type Placement struct {
	BlockID int `json:"blockId"`
	X       int `json:"x"`
	Y       int `json:"y"`
	Z       int `json:"z"`
}

// Layer is one horizontal slice of a build. Blocks is sparse: a present key
// always holds a non-air block.
type Layer struct {
	ID      string
	Name    string
	Visible bool
	Blocks  map[PosKey]Placement
}

// NewID mints a unique id for builds and layers.
func NewID() string { return uuid.NewString() }

// NewLayer returns an empty visible layer with a fresh id.
func NewLayer(name string) Layer {
	return Layer{
		ID:      NewID(),
		Name:    name,
		Visible: true,
		Blocks:  map[PosKey]Placement{},
	}
}

// Clone deep-copies the layer.
func (l Layer) Clone() Layer {
	out := l
	out.Blocks = make(map[PosKey]Placement, len(l.Blocks))
	for k, v := range l.Blocks {
		out.Blocks[k] = v
	}
	return out
}

// Build is the root aggregate: dimensions, ordered layer stack, metadata.
// Width is the X extent, Height the Z extent; the Y extent is len(Layers).
type Build struct {
	ID        string
	Name      string
	Width     int
	Height    int
	Layers    []Layer
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBuild returns a build with a single empty layer. Extents are clamped to
// at least 1.
func NewBuild(name string, width, height int) *Build {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	now := time.Now().UTC()
	return &Build{
		ID:        NewID(),
		Name:      name,
		Width:     width,
		Height:    height,
		Layers:    []Layer{NewLayer("Layer 1")},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone deep-copies the build, layers and block maps included.
func (b *Build) Clone() *Build {
	out := *b
	out.Layers = make([]Layer, len(b.Layers))
	for i, l := range b.Layers {
		out.Layers[i] = l.Clone()
	}
	return &out
}

// InBounds reports whether (x,y,z) addresses a cell of the current build.
func (b *Build) InBounds(x, y, z int) bool {
	return x >= 0 && x < b.Width &&
		z >= 0 && z < b.Height &&
		y >= 0 && y < len(b.Layers)
}

// BlockCount returns the number of placed blocks across all layers.
func (b *Build) BlockCount() int {
	n := 0
	for _, l := range b.Layers {
		n += len(l.Blocks)
	}
	return n
}

// Normalize repairs placement records after a boundary import: fills X/Z
// from the map key and Y from the layer index, and drops air entries that a
// producer wrote to signal deletion.
func (b *Build) Normalize() {
	if b.Width < 1 {
		b.Width = 1
	}
	if b.Height < 1 {
		b.Height = 1
	}
	if len(b.Layers) == 0 {
		b.Layers = []Layer{NewLayer("Layer 1")}
	}
	for y := range b.Layers {
		l := &b.Layers[y]
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if l.Blocks == nil {
			l.Blocks = map[PosKey]Placement{}
		}
		for k, p := range l.Blocks {
			if p.BlockID <= AirID {
				delete(l.Blocks, k)
				continue
			}
			p.X = k.X
			p.Z = k.Z
			p.Y = y
			l.Blocks[k] = p
		}
	}
}
