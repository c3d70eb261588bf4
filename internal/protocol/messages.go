package protocol

import (
	"voxelstudio.ai/internal/assist"
	"voxelstudio.ai/internal/model"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Actor           string `json:"actor,omitempty"`
	BuildID         string `json:"build_id,omitempty"` // resume a stored build
	Name            string `json:"name,omitempty"`     // fresh-build name
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	SessionID       string       `json:"session_id"`
	CatalogDigest   string       `json:"catalog_digest"`
	CatalogCount    int          `json:"catalog_count"`
	Build           *model.Build `json:"build"`
	ActiveLayer     int          `json:"active_layer"`
}

// Edit operations.
const (
	EditPlace       = "PLACE"
	EditAddLayer    = "ADD_LAYER"
	EditRemoveLayer = "REMOVE_LAYER"
	EditDuplicate   = "DUPLICATE_LAYER"
	EditToggle      = "TOGGLE_LAYER"
	EditSetActive   = "SET_ACTIVE_LAYER"
	EditUndo        = "UNDO"
	EditRedo        = "REDO"
	EditResize      = "RESIZE"
)

// EDIT (client -> server): one editor mutation. Fields beyond Op are read
// per operation and ignored otherwise.
type EditMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Op              string `json:"op"`
	X               int    `json:"x,omitempty"`
	Y               int    `json:"y,omitempty"`
	Z               int    `json:"z,omitempty"`
	BlockID         int    `json:"blockId,omitempty"`
	Index           int    `json:"index,omitempty"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
}

// STATE (server -> client): the full build after a mutation. The editor is
// single-actor and builds are small, so full-state sync keeps the client
// trivial.
type StateMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Build           *model.Build `json:"build"`
	ActiveLayer     int          `json:"active_layer"`
}

// GENERATE (client -> server): an AI build request.
type GenerateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Request         string `json:"request"`
	IncludeState    bool   `json:"include_state,omitempty"`
}

// RESULT (server -> client): outcome of a GENERATE round. The follow-up
// STATE message carries the merged build.
type ResultMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Result          assist.Result `json:"result"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
