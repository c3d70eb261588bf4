package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Request/edit layer.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrNotFound   = "E_NOT_FOUND"

	// AI pipeline boundary.
	ErrAITransport = "E_AI_TRANSPORT"
	ErrAIBadReply  = "E_AI_BAD_REPLY"
	ErrAINoKey     = "E_AI_NO_KEY"

	// Local store boundary.
	ErrStore = "E_STORE"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrNotFound:        {},
	ErrAITransport:     {},
	ErrAIBadReply:      {},
	ErrAINoKey:         {},
	ErrStore:           {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
