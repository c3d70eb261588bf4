// Package editor owns the live build of one editing session: it applies
// mutations and keeps the linear undo history.
package editor

import (
	"fmt"
	"time"

	"voxelstudio.ai/internal/model"
)

// Audit operation names.
const (
	OpPlace     = "PLACE"
	OpMerge     = "MERGE"
	OpAddLayer  = "ADD_LAYER"
	OpRemove    = "REMOVE_LAYER"
	OpDuplicate = "DUPLICATE_LAYER"
	OpResize    = "RESIZE"
)

// AuditEntry records one committed mutation.
type AuditEntry struct {
	At    time.Time `json:"at"`
	Actor string    `json:"actor"`
	Op    string    `json:"op"`
	Pos   [3]int    `json:"pos,omitempty"`
	From  int       `json:"from,omitempty"`
	To    int       `json:"to,omitempty"`
}

type AuditLogger interface {
	WriteAudit(AuditEntry) error
}

// DefaultHistoryCap bounds the snapshot history; the oldest snapshot is
// dropped when the cap is reached.
const DefaultHistoryCap = 100

// MaxLayers bounds how far a merge may grow the layer stack. Instructions
// above it are out of bounds and dropped instead of growing the build.
const MaxLayers = 256

// Session is the single mutable owner of a build. All operations are total:
// malformed indices are clamped or ignored, never raised.
type Session struct {
	Actor string

	build       *model.Build
	activeLayer int

	history    []*model.Build
	redo       []*model.Build
	historyCap int

	audit AuditLogger
}

// NewSession wraps an existing build. audit may be nil.
func NewSession(b *model.Build, audit AuditLogger) *Session {
	b.Normalize()
	return &Session{
		build:      b,
		historyCap: DefaultHistoryCap,
		audit:      audit,
	}
}

// SetHistoryCap overrides the snapshot bound; values below 1 are ignored.
func (s *Session) SetHistoryCap(n int) {
	if n >= 1 {
		s.historyCap = n
	}
}

// Build returns the live build. Callers must treat it as read-only.
func (s *Session) Build() *model.Build { return s.build }

// ActiveLayer returns the index of the layer edits target.
func (s *Session) ActiveLayer() int { return s.activeLayer }

// SetActiveLayer clamps index into range.
func (s *Session) SetActiveLayer(index int) {
	s.activeLayer = clamp(index, 0, len(s.build.Layers)-1)
}

// snapshot pushes the current state onto the undo history and discards any
// redo tail.
func (s *Session) snapshot() {
	s.history = append(s.history, s.build.Clone())
	if len(s.history) > s.historyCap {
		s.history = s.history[1:]
	}
	s.redo = nil
}

func (s *Session) touch() {
	s.build.UpdatedAt = time.Now().UTC()
}

func (s *Session) writeAudit(op string, pos [3]int, from, to int) {
	if s.audit == nil {
		return
	}
	_ = s.audit.WriteAudit(AuditEntry{
		At:    time.Now().UTC(),
		Actor: s.Actor,
		Op:    op,
		Pos:   pos,
		From:  from,
		To:    to,
	})
}

// PlaceBlock sets or clears one cell on layer y. Air (block id 0) deletes
// the entry. The call is ignored when y does not address a layer; x/z are
// not validated here — canvas and assist pipeline validate at their own
// boundaries.
func (s *Session) PlaceBlock(x, y, z, blockID int) {
	if y < 0 || y >= len(s.build.Layers) {
		return
	}
	s.snapshot()
	s.setBlock(x, y, z, blockID, OpPlace)
	s.touch()
}

// setBlock is the shared low-level write used by PlaceBlock and Merge.
func (s *Session) setBlock(x, y, z, blockID int, op string) {
	l := &s.build.Layers[y]
	k := model.PosKey{X: x, Z: z}
	prev := l.Blocks[k].BlockID
	if blockID == model.AirID {
		delete(l.Blocks, k)
	} else {
		l.Blocks[k] = model.Placement{BlockID: blockID, X: x, Y: y, Z: z}
	}
	s.writeAudit(op, [3]int{x, y, z}, prev, blockID)
}

// AddLayer appends a new empty visible layer and makes it active.
func (s *Session) AddLayer() {
	s.snapshot()
	l := model.NewLayer(fmt.Sprintf("Layer %d", len(s.build.Layers)+1))
	s.build.Layers = append(s.build.Layers, l)
	s.activeLayer = len(s.build.Layers) - 1
	s.writeAudit(OpAddLayer, [3]int{0, s.activeLayer, 0}, 0, 0)
	s.touch()
}

// RemoveLayer deletes the layer at index. Removing the last remaining layer
// is a silent no-op, as is an out-of-range index.
func (s *Session) RemoveLayer(index int) {
	if len(s.build.Layers) <= 1 || index < 0 || index >= len(s.build.Layers) {
		return
	}
	s.snapshot()
	s.build.Layers = append(s.build.Layers[:index], s.build.Layers[index+1:]...)
	s.activeLayer = clamp(s.activeLayer, 0, len(s.build.Layers)-1)
	s.writeAudit(OpRemove, [3]int{0, index, 0}, 0, 0)
	s.touch()
}

// DuplicateLayer inserts a deep copy right after index and makes it active.
func (s *Session) DuplicateLayer(index int) {
	if index < 0 || index >= len(s.build.Layers) {
		return
	}
	s.snapshot()
	src := s.build.Layers[index]
	dup := src.Clone()
	dup.ID = model.NewID()
	dup.Name = src.Name + " copy"
	s.build.Layers = append(s.build.Layers, model.Layer{})
	copy(s.build.Layers[index+2:], s.build.Layers[index+1:])
	s.build.Layers[index+1] = dup
	s.activeLayer = index + 1
	s.writeAudit(OpDuplicate, [3]int{0, index, 0}, 0, 0)
	s.touch()
}

// ToggleLayerVisibility flips visibility; placement data is untouched and
// the toggle is not recorded to history.
func (s *Session) ToggleLayerVisibility(index int) {
	if index < 0 || index >= len(s.build.Layers) {
		return
	}
	s.build.Layers[index].Visible = !s.build.Layers[index].Visible
}

// Resize changes the stored extents only. Placements outside the new bounds
// stay in the sparse maps; exporter and bounds checks skip them.
func (s *Session) Resize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if width == s.build.Width && height == s.build.Height {
		return
	}
	s.snapshot()
	s.build.Width = width
	s.build.Height = height
	s.writeAudit(OpResize, [3]int{width, 0, height}, 0, 0)
	s.touch()
}

// Undo restores the previous snapshot; no-op at the boundary.
func (s *Session) Undo() {
	if len(s.history) == 0 {
		return
	}
	s.redo = append(s.redo, s.build)
	s.build = s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.activeLayer = clamp(s.activeLayer, 0, len(s.build.Layers)-1)
}

// Redo restores the next snapshot; no-op at the boundary.
func (s *Session) Redo() {
	if len(s.redo) == 0 {
		return
	}
	s.history = append(s.history, s.build)
	s.build = s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.activeLayer = clamp(s.activeLayer, 0, len(s.build.Layers)-1)
}

// Merge overlays a validated instruction set onto the build as one history
// step: the layer stack grows to cover the highest referenced y (capped at
// MaxLayers), then each instruction inside the current bounds is applied
// through the same write path as manual placement. Out-of-bounds
// instructions are dropped. Returns the number applied.
func (s *Session) Merge(instructions []model.Placement) int {
	if len(instructions) == 0 {
		return 0
	}
	s.snapshot()

	maxY := 0
	for _, p := range instructions {
		if p.Y > maxY && p.Y < MaxLayers {
			maxY = p.Y
		}
	}
	for len(s.build.Layers) <= maxY {
		s.build.Layers = append(s.build.Layers, model.NewLayer(fmt.Sprintf("Layer %d", len(s.build.Layers)+1)))
	}

	applied := 0
	for _, p := range instructions {
		if !s.build.InBounds(p.X, p.Y, p.Z) {
			continue
		}
		s.setBlock(p.X, p.Y, p.Z, p.BlockID, OpMerge)
		applied++
	}
	s.touch()
	return applied
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
