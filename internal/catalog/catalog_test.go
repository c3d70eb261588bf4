package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

const sample = `[
	{"id":1,"name":"stone","displayName":"Stone","material":"rock","texture":"stone.png"},
	{"id":2,"name":"oak_planks","displayName":"Oak Planks","material":"wood","texture":"https://cdn/planks.png"},
	{"id":3,"name":"glass","displayName":"Glass","transparent":true,"texture":"glass.png"},
	{"id":4,"name":"broken","displayName":"Broken","texture":"missing_texture.png"}
]`

func TestParse_DropsMissingTextureAndAbsolutizes(t *testing.T) {
	c, err := Parse([]byte(sample), "https://assets.example/tex")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("want 3 blocks after placeholder drop, got %d", c.Len())
	}
	if _, ok := c.Lookup(4); ok {
		t.Fatalf("missing-texture placeholder survived")
	}
	b, _ := c.Lookup(1)
	if b.Texture != "https://assets.example/tex/stone.png" {
		t.Fatalf("relative texture not absolutized: %q", b.Texture)
	}
	b, _ = c.Lookup(2)
	if b.Texture != "https://cdn/planks.png" {
		t.Fatalf("absolute texture rewritten: %q", b.Texture)
	}
	if c.Digest == "" {
		t.Fatalf("digest not computed")
	}
}

func TestParse_RejectsBadShape(t *testing.T) {
	cases := []string{
		`{"not":"an array"}`,
		`[{"id":-1,"name":"x","displayName":"X"}]`,
		`[{"name":"x","displayName":"X"}]`,
		`[{"id":1,"name":"x","displayName":"X"},{"id":1,"name":"y","displayName":"Y"}]`,
	}
	for _, raw := range cases {
		if _, err := Parse([]byte(raw), ""); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestKnownID_AirAlwaysKnown(t *testing.T) {
	c, err := Parse([]byte(sample), "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !c.KnownID(0) {
		t.Fatalf("air must always be known")
	}
	if c.KnownID(99) {
		t.Fatalf("unknown id reported known")
	}
}

func TestFiltered(t *testing.T) {
	c, err := Parse([]byte(sample), "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := c.Filtered("OAK")
	if len(got) != 1 || got[0].Name != "oak_planks" {
		t.Fatalf("display/name filter: %+v", got)
	}
	got = c.Filtered("")
	if len(got) != 3 {
		t.Fatalf("empty term should return all, got %d", len(got))
	}
	// Stable catalog order.
	if got[0].ID != 1 || got[1].ID != 2 || got[2].ID != 3 {
		t.Fatalf("order not preserved: %+v", got)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blocks.json")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("Len=%d", c.Len())
	}
	if _, err := Load(filepath.Join(dir, "nope.json"), ""); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
