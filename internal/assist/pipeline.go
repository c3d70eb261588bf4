// Package assist turns a free-text build request plus the current editor
// state into validated block placements via an external text-generation
// service.
package assist

import (
	"context"
	"sync"

	"voxelstudio.ai/internal/catalog"
	"voxelstudio.ai/internal/editor"
	"voxelstudio.ai/internal/model"
)

// Pipeline wires the prompt builder, the completion client and the reply
// parser together. The catalog can be swapped at runtime; in-flight rounds
// finish against the catalog they started with.
type Pipeline struct {
	completer  Completer
	catalogCap int

	mu      sync.RWMutex
	catalog *catalog.Catalog
}

func NewPipeline(completer Completer, cat *catalog.Catalog, catalogCap int) *Pipeline {
	if catalogCap <= 0 {
		catalogCap = DefaultCatalogCap
	}
	return &Pipeline{completer: completer, catalog: cat, catalogCap: catalogCap}
}

// Prompt renders the system instruction document for b. Transports that
// overlap the completion call with further editing use this plus ParseReply
// and merge on their own schedule; Generate composes the whole round.
func (p *Pipeline) Prompt(b *model.Build, includeState bool) string {
	in := PromptInput{
		Width:      b.Width,
		Height:     b.Height,
		LayerCount: len(b.Layers),
		Catalog:    p.Catalog(),
		CatalogCap: p.catalogCap,
	}
	if includeState {
		in.Build = b
	}
	return BuildPrompt(in)
}

// Catalog returns the full catalog replies are validated against.
func (p *Pipeline) Catalog() *catalog.Catalog {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.catalog
}

// Replace swaps the catalog used by subsequent rounds.
func (p *Pipeline) Replace(cat *catalog.Catalog) {
	p.mu.Lock()
	p.catalog = cat
	p.mu.Unlock()
}

// Result summarizes one generate round for the user.
type Result struct {
	Explanation string `json:"explanation"`
	Requested   int    `json:"requested"`
	Applied     int    `json:"applied"`
	Dropped     int    `json:"dropped"`
	LayerCount  int    `json:"layerCount"`
}

// Generate runs the full round: build the instruction document from the
// session's build, call the service, parse and sanitize the reply, and
// merge the surviving instructions into the session. includeState controls
// whether the current layer contents are described to the model.
//
// The build may be edited while the call is in flight; Merge re-validates
// every instruction against the build as it is at merge time.
func (p *Pipeline) Generate(ctx context.Context, request string, sess *editor.Session, includeState bool) (Result, error) {
	cat := p.Catalog()
	system := p.Prompt(sess.Build(), includeState)

	text, err := p.completer.Complete(ctx, system, UserMessage(request))
	if err != nil {
		return Result{}, err
	}

	reply, err := ParseReply(text, cat)
	if err != nil {
		return Result{}, err
	}

	applied := sess.Merge(reply.Instructions)
	return Result{
		Explanation: reply.Explanation,
		Requested:   len(reply.Instructions) + reply.Dropped,
		Applied:     applied,
		Dropped:     reply.Dropped + len(reply.Instructions) - applied,
		LayerCount:  len(sess.Build().Layers),
	}, nil
}
