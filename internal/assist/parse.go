package assist

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelstudio.ai/internal/catalog"
	"voxelstudio.ai/internal/model"
)

// DefaultExplanation substitutes for a missing or non-string explanation
// field.
const DefaultExplanation = "Generated block placements."

// ErrBadReply marks replies with no extractable, schema-conformant JSON
// object. Callers map it to a "failed to parse, try again" message.
var ErrBadReply = errors.New("malformed model reply")

// replySchema pins the structural contract only; per-instruction problems
// are filtered, not failed.
const replySchema = `{
	"type": "object",
	"required": ["instructions"],
	"properties": {
		"instructions": {"type": "array"}
	}
}`

var compiledReplySchema = jsonschema.MustCompileString("reply.schema.json", replySchema)

// Reply is the sanitized outcome of parsing a model answer. Instructions
// are well-typed and reference known catalog ids; bounds are NOT checked
// here — the merge step re-validates against the live build.
type Reply struct {
	Instructions []model.Placement
	Explanation  string
	Dropped      int
}

// ParseReply turns free-form model output into a Reply. Text generators do
// not reliably honor "JSON only", so the input is cleaned first: code
// fences and //-style or /* */-style comments are stripped, then the first
// top-level {...} span is extracted and parsed.
func ParseReply(text string, cat *catalog.Catalog) (Reply, error) {
	cleaned := stripComments(stripFences(text))
	span, ok := extractObject(cleaned)
	if !ok {
		return Reply{}, fmt.Errorf("%w: no JSON object found", ErrBadReply)
	}

	var doc any
	if err := json.Unmarshal([]byte(span), &doc); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrBadReply, err)
	}
	if err := compiledReplySchema.Validate(doc); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrBadReply, err)
	}

	var envelope struct {
		Instructions []json.RawMessage `json:"instructions"`
		Explanation  any               `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(span), &envelope); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrBadReply, err)
	}

	out := Reply{Explanation: DefaultExplanation}
	if s, ok := envelope.Explanation.(string); ok && s != "" {
		out.Explanation = s
	}

	for _, raw := range envelope.Instructions {
		p, ok := decodeInstruction(raw, cat)
		if !ok {
			out.Dropped++
			continue
		}
		out.Instructions = append(out.Instructions, p)
	}
	return out, nil
}

// decodeInstruction keeps an entry only when x, y, z and blockId are all
// present and numeric and blockId is known in the full catalog.
func decodeInstruction(raw json.RawMessage, cat *catalog.Catalog) (model.Placement, bool) {
	var in struct {
		X       *float64 `json:"x"`
		Y       *float64 `json:"y"`
		Z       *float64 `json:"z"`
		BlockID *float64 `json:"blockId"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return model.Placement{}, false
	}
	if in.X == nil || in.Y == nil || in.Z == nil || in.BlockID == nil {
		return model.Placement{}, false
	}
	id := int(*in.BlockID)
	if !cat.KnownID(id) {
		return model.Placement{}, false
	}
	return model.Placement{
		BlockID: id,
		X:       int(*in.X),
		Y:       int(*in.Y),
		Z:       int(*in.Z),
	}, true
}

// stripFences removes Markdown code-fence lines, language-tagged or bare.
func stripFences(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

// stripComments removes // line comments and /* */ block comments that sit
// outside JSON string literals.
func stripComments(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inString := false
	escaped := false
	i := 0
	for i < len(text) {
		c := text[i]
		if inString {
			b.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			i++
			continue
		}
		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
			i++
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			for i < len(text) && text[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			i += 2
			for i+1 < len(text) && !(text[i] == '*' && text[i+1] == '/') {
				i++
			}
			if i+1 < len(text) {
				i += 2
			} else {
				i = len(text)
			}
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// extractObject returns the first balanced top-level {...} span, tracking
// string literals so braces inside values do not confuse the depth count.
func extractObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
