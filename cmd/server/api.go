package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"voxelstudio.ai/internal/assist"
	"voxelstudio.ai/internal/catalog"
	"voxelstudio.ai/internal/editor"
	"voxelstudio.ai/internal/export"
	"voxelstudio.ai/internal/model"
	"voxelstudio.ai/internal/persistence/buildsdb"
	"voxelstudio.ai/internal/protocol"
)

// apiServer carries the REST surface: build CRUD, export, one-shot
// generation, catalog and credential management. Live editing goes through
// the WebSocket transport instead.
type apiServer struct {
	store        *buildsdb.Store
	pipeline     *assist.Pipeline
	audit        editor.AuditLogger
	historyCap   int
	catalogCap   int
	catalogPath  string
	textureBase  string
	newCompleter func() (assist.Completer, error)
	log          *log.Logger
}

func (a *apiServer) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/builds", a.listBuilds)
	mux.HandleFunc("POST /v1/builds", a.createBuild)
	mux.HandleFunc("GET /v1/builds/{id}", a.getBuild)
	mux.HandleFunc("PUT /v1/builds/{id}", a.putBuild)
	mux.HandleFunc("DELETE /v1/builds/{id}", a.deleteBuild)
	mux.HandleFunc("POST /v1/builds/{id}/export", a.exportBuild)
	mux.HandleFunc("POST /v1/generate", a.generate)
	mux.HandleFunc("GET /v1/catalog", a.getCatalog)
	mux.HandleFunc("PUT /v1/catalog", a.putCatalog)
	mux.HandleFunc("PUT /v1/credential", a.putCredential)
}

func (a *apiServer) listBuilds(rw http.ResponseWriter, r *http.Request) {
	builds, err := a.store.List()
	if err != nil {
		a.storeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"builds": builds})
}

func (a *apiServer) createBuild(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "bad request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		req.Name = "Untitled build"
	}
	b := model.NewBuild(req.Name, req.Width, req.Height)
	if err := a.store.Upsert(b); err != nil {
		a.storeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusCreated, b)
}

func (a *apiServer) getBuild(rw http.ResponseWriter, r *http.Request) {
	b, err := a.store.Get(r.PathValue("id"))
	if err != nil {
		a.storeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, b)
}

func (a *apiServer) putBuild(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 32<<20))
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "bad request body")
		return
	}
	var b model.Build
	if err := json.Unmarshal(body, &b); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "undecodable build: "+err.Error())
		return
	}
	b.ID = r.PathValue("id")
	if err := a.store.Upsert(&b); err != nil {
		a.storeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, &b)
}

func (a *apiServer) deleteBuild(rw http.ResponseWriter, r *http.Request) {
	if err := a.store.Delete(r.PathValue("id")); err != nil {
		a.storeError(rw, err)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (a *apiServer) exportBuild(rw http.ResponseWriter, r *http.Request) {
	b, err := a.store.Get(r.PathValue("id"))
	if err != nil {
		a.storeError(rw, err)
		return
	}
	s := export.FromBuild(b, a.pipeline.Catalog())
	rw.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(b.Name)+`"`)
	writeJSON(rw, http.StatusOK, s)
}

// generate runs one blocking AI round against a stored build and persists
// the merged result. The WebSocket path is the interactive variant.
func (a *apiServer) generate(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		BuildID      string `json:"build_id"`
		Request      string `json:"request"`
		IncludeState bool   `json:"include_state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Request) == "" {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "request text is required")
		return
	}
	b, err := a.store.Get(req.BuildID)
	if err != nil {
		a.storeError(rw, err)
		return
	}

	completer, err := a.newCompleter()
	if err != nil {
		writeError(rw, http.StatusServiceUnavailable, protocol.ErrAINoKey, "no AI credential configured")
		return
	}

	sess := editor.NewSession(b, a.audit)
	sess.SetHistoryCap(a.historyCap)
	pipe := assist.NewPipeline(completer, a.pipeline.Catalog(), a.catalogCap)
	res, err := pipe.Generate(r.Context(), req.Request, sess, req.IncludeState)
	if err != nil {
		a.log.Printf("generate build=%s: %v", req.BuildID, err)
		if errors.Is(err, assist.ErrBadReply) {
			writeError(rw, http.StatusBadGateway, protocol.ErrAIBadReply, "failed to parse the model reply, try again")
			return
		}
		writeError(rw, http.StatusBadGateway, protocol.ErrAITransport, "generation failed, try again")
		return
	}
	if err := a.store.Upsert(sess.Build()); err != nil {
		a.storeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"result": res, "build": sess.Build()})
}

func (a *apiServer) getCatalog(rw http.ResponseWriter, r *http.Request) {
	cat := a.pipeline.Catalog()
	blocks := cat.Blocks
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		blocks = cat.Filtered(q)
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"digest": cat.Digest,
		"count":  len(blocks),
		"blocks": blocks,
	})
}

// putCatalog validates the uploaded block list, persists it and swaps it in
// for subsequent prompt and validation rounds.
func (a *apiServer) putCatalog(rw http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "bad request body")
		return
	}
	cat, err := catalog.Parse(raw, a.textureBase)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "invalid catalog: "+err.Error())
		return
	}
	if err := os.WriteFile(a.catalogPath, raw, 0o644); err != nil {
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, "persist catalog: "+err.Error())
		return
	}
	a.pipeline.Replace(cat)
	a.log.Printf("catalog replaced: %d blocks digest=%s", cat.Len(), cat.Digest)
	writeJSON(rw, http.StatusOK, map[string]any{"digest": cat.Digest, "count": cat.Len()})
}

func (a *apiServer) putCredential(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "credential name is required")
		return
	}
	if err := a.store.SetCredential(req.Name, req.Value); err != nil {
		a.storeError(rw, err)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (a *apiServer) storeError(rw http.ResponseWriter, err error) {
	if errors.Is(err, buildsdb.ErrNotFound) {
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "build not found")
		return
	}
	a.log.Printf("store: %v", err)
	writeError(rw, http.StatusInternalServerError, protocol.ErrStore, "storage failure")
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code, message string) {
	writeJSON(rw, status, map[string]string{"code": code, "message": message})
}
