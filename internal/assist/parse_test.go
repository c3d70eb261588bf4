package assist

import (
	"reflect"
	"testing"

	"voxelstudio.ai/internal/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(`[
		{"id":1,"name":"stone","displayName":"Stone"},
		{"id":2,"name":"oak_planks","displayName":"Oak Planks"},
		{"id":3,"name":"glass_pane","displayName":"Glass Pane"}
	]`), "")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func TestParseReply_Clean(t *testing.T) {
	r, err := ParseReply(`{"instructions":[{"x":0,"y":0,"z":0,"blockId":1,"blockName":"stone"}],"explanation":"a wall"}`, testCatalog(t))
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if len(r.Instructions) != 1 || r.Instructions[0].BlockID != 1 {
		t.Fatalf("instructions: %+v", r.Instructions)
	}
	if r.Explanation != "a wall" {
		t.Fatalf("explanation: %q", r.Explanation)
	}
}

func TestParseReply_FencesAndCommentsIdempotent(t *testing.T) {
	clean := `{"instructions":[{"x":1,"y":0,"z":2,"blockId":2},{"x":2,"y":1,"z":2,"blockId":3}],"explanation":"hut"}`
	noisy := "Here is the build:\n```json\n" + `{
		// outline first
		"instructions":[
			{"x":1,"y":0,"z":2,"blockId":2}, /* wall */
			{"x":2,"y":1,"z":2,"blockId":3}
		],
		"explanation":"hut"
	}` + "\n```\nEnjoy!"

	cat := testCatalog(t)
	a, err := ParseReply(clean, cat)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	b, err := ParseReply(noisy, cat)
	if err != nil {
		t.Fatalf("noisy: %v", err)
	}
	if !reflect.DeepEqual(a.Instructions, b.Instructions) {
		t.Fatalf("fenced/commented reply parsed differently:\n%+v\n%+v", a.Instructions, b.Instructions)
	}
}

func TestParseReply_CommentMarkersInsideStrings(t *testing.T) {
	r, err := ParseReply(`{"instructions":[],"explanation":"see https://example.com/plan /* not a comment */"}`, testCatalog(t))
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if r.Explanation != "see https://example.com/plan /* not a comment */" {
		t.Fatalf("string content mangled: %q", r.Explanation)
	}
}

func TestParseReply_StructuralFailures(t *testing.T) {
	cat := testCatalog(t)
	cases := []string{
		"no json here at all",
		"{ this is not JSON }",
		`{"answer":"missing instructions"}`,
		`{"instructions":"not an array"}`,
		`{"instructions": {"x":1}}`,
	}
	for _, in := range cases {
		if _, err := ParseReply(in, cat); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestParseReply_FiltersBadInstructions(t *testing.T) {
	r, err := ParseReply(`{"instructions":[
		{"x":0,"y":0,"z":0,"blockId":1},
		{"x":"0","y":0,"z":0,"blockId":1},
		{"y":0,"z":0,"blockId":1},
		{"x":0,"y":0,"z":0,"blockId":99},
		{"x":5,"y":0,"z":5,"blockId":0}
	]}`, testCatalog(t))
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	// Kept: the valid entry and the air entry (id 0 is always known).
	if len(r.Instructions) != 2 {
		t.Fatalf("kept %d instructions: %+v", len(r.Instructions), r.Instructions)
	}
	if r.Dropped != 3 {
		t.Fatalf("dropped=%d", r.Dropped)
	}
	if r.Explanation != DefaultExplanation {
		t.Fatalf("missing explanation must use default, got %q", r.Explanation)
	}
}

func TestParseReply_NonStringExplanation(t *testing.T) {
	r, err := ParseReply(`{"instructions":[],"explanation":42}`, testCatalog(t))
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if r.Explanation != DefaultExplanation {
		t.Fatalf("explanation: %q", r.Explanation)
	}
}

func TestExtractObject_NestedAndTrailing(t *testing.T) {
	span, ok := extractObject(`noise {"a":{"b":"}"}} {"second":1}`)
	if !ok {
		t.Fatalf("extractObject failed")
	}
	if span != `{"a":{"b":"}"}}` {
		t.Fatalf("span: %q", span)
	}
	if _, ok := extractObject(`{"unbalanced":`); ok {
		t.Fatalf("unbalanced object extracted")
	}
}
