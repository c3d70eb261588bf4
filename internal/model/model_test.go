package model

import (
	"encoding/json"
	"testing"
)

func TestParsePosKey(t *testing.T) {
	k, err := ParsePosKey("3,-2")
	if err != nil {
		t.Fatalf("ParsePosKey: %v", err)
	}
	if k.X != 3 || k.Z != -2 {
		t.Fatalf("got %+v", k)
	}
	if k.String() != "3,-2" {
		t.Fatalf("String: %q", k.String())
	}
	if _, err := ParsePosKey("nope"); err == nil {
		t.Fatalf("expected error for malformed key")
	}
}

func TestUnmarshal_LegacyAndExplicitCells(t *testing.T) {
	raw := []byte(`{
		"id":"b1","name":"hut","width":4,"height":4,
		"layers":[
			{"id":"l0","name":"ground","visible":true,
			 "blocks":{"0,0":7,"1,2":{"blockId":9,"x":99,"y":99,"z":99}}},
			{"id":"l1","name":"walls","visible":false,
			 "blocks":{"2,2":{"blockId":0,"x":2,"y":1,"z":2}}}
		]
	}`)
	var b Build
	if err := json.Unmarshal(raw, &b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	p, ok := b.Layers[0].Blocks[PosKey{0, 0}]
	if !ok || p.BlockID != 7 {
		t.Fatalf("legacy cell: %+v ok=%v", p, ok)
	}
	// Normalization overwrites stored coordinates with key/layer-derived ones.
	if p.X != 0 || p.Z != 0 || p.Y != 0 {
		t.Fatalf("legacy cell coords: %+v", p)
	}
	p = b.Layers[0].Blocks[PosKey{1, 2}]
	if p.BlockID != 9 || p.X != 1 || p.Z != 2 || p.Y != 0 {
		t.Fatalf("explicit cell not normalized: %+v", p)
	}
	// Explicit air written by a producer is stripped on import.
	if _, ok := b.Layers[1].Blocks[PosKey{2, 2}]; ok {
		t.Fatalf("air cell survived normalization")
	}
	if b.Layers[1].Visible {
		t.Fatalf("visibility lost")
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	b := NewBuild("castle", 8, 6)
	b.Layers[0].Blocks[PosKey{3, 4}] = Placement{BlockID: 12, X: 3, Y: 0, Z: 4}
	raw, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got Build
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Width != 8 || got.Height != 6 || len(got.Layers) != 1 {
		t.Fatalf("dims: %+v", got)
	}
	if got.Layers[0].Blocks[PosKey{3, 4}].BlockID != 12 {
		t.Fatalf("block lost in round trip")
	}
}

func TestClone_Isolated(t *testing.T) {
	b := NewBuild("a", 4, 4)
	b.Layers[0].Blocks[PosKey{1, 1}] = Placement{BlockID: 5, X: 1, Z: 1}
	c := b.Clone()
	c.Layers[0].Blocks[PosKey{1, 1}] = Placement{BlockID: 6, X: 1, Z: 1}
	c.Layers[0].Blocks[PosKey{2, 2}] = Placement{BlockID: 7, X: 2, Z: 2}
	if b.Layers[0].Blocks[PosKey{1, 1}].BlockID != 5 {
		t.Fatalf("clone shares block map")
	}
	if len(b.Layers[0].Blocks) != 1 {
		t.Fatalf("clone mutation leaked into original")
	}
}

func TestNormalize_EnsuresInvariants(t *testing.T) {
	b := &Build{Width: 0, Height: -3}
	b.Normalize()
	if b.Width != 1 || b.Height != 1 {
		t.Fatalf("extents not clamped: %dx%d", b.Width, b.Height)
	}
	if len(b.Layers) != 1 || b.Layers[0].ID == "" || b.Layers[0].Blocks == nil {
		t.Fatalf("layer invariant not restored: %+v", b.Layers)
	}
}
