// Package ws serves live editor sessions over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voxelstudio.ai/internal/assist"
	"voxelstudio.ai/internal/editor"
	"voxelstudio.ai/internal/model"
	"voxelstudio.ai/internal/persistence/buildsdb"
	"voxelstudio.ai/internal/protocol"
)

// Stats are the counters the /metrics endpoint exposes.
type Stats struct {
	Sessions    int64
	GenRequests int64
	GenFailures int64
}

type Server struct {
	pipeline   *assist.Pipeline
	store      *buildsdb.Store
	audit      editor.AuditLogger
	log        *log.Logger
	historyCap int

	// newCompleter builds the outbound client per generate call so a
	// credential stored mid-session is picked up without reconnecting.
	newCompleter func() (assist.Completer, error)

	sessions    atomic.Int64
	genRequests atomic.Int64
	genFailures atomic.Int64

	upgrader websocket.Upgrader
}

func NewServer(pipeline *assist.Pipeline, store *buildsdb.Store, audit editor.AuditLogger, historyCap int, newCompleter func() (assist.Completer, error), logger *log.Logger) *Server {
	return &Server{
		pipeline:     pipeline,
		store:        store,
		audit:        audit,
		log:          logger,
		historyCap:   historyCap,
		newCompleter: newCompleter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Stats() Stats {
	return Stats{
		Sessions:    s.sessions.Load(),
		GenRequests: s.genRequests.Load(),
		GenFailures: s.genFailures.Load(),
	}
}

// genOutcome carries a finished completion back into the session loop,
// where the single-actor merge happens.
type genOutcome struct {
	reply assist.Reply
	code  string
	err   error
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess, ok := s.handshake(conn)
		if !ok {
			return
		}
		s.sessions.Add(1)
		defer s.sessions.Add(-1)
		defer s.persist(sess)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, 16)
		go writerLoop(ctx, cancel, conn, out)

		in := make(chan []byte)
		go readerLoop(ctx, cancel, conn, in)

		genDone := make(chan genOutcome, 4)

		for {
			select {
			case <-ctx.Done():
				return
			case g := <-genDone:
				s.finishGenerate(ctx, sess, g, out)
			case msg, okRead := <-in:
				if !okRead {
					return
				}
				s.route(ctx, sess, msg, out, genDone)
			}
		}
	}
}

func writerLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-out:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				cancel()
				return
			}
		}
	}
}

func readerLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, in chan<- []byte) {
	defer close(in)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			cancel()
			return
		}
		// The session loop may have exited while this message was being
		// read; a bare send would block forever.
		select {
		case in <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (*editor.Session, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil, false
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil, false
	}

	var b *model.Build
	if hello.BuildID != "" {
		if s.store == nil {
			b, err = nil, buildsdb.ErrNotFound
		} else {
			b, err = s.store.Get(hello.BuildID)
		}
		if err != nil {
			writeJSON(conn, protocol.ErrorMsg{
				Type:            protocol.TypeError,
				ProtocolVersion: protocol.Version,
				Code:            protocol.ErrNotFound,
				Message:         "build not found: " + hello.BuildID,
			})
			return nil, false
		}
	} else {
		name := hello.Name
		if strings.TrimSpace(name) == "" {
			name = "Untitled build"
		}
		w, h := hello.Width, hello.Height
		if w <= 0 {
			w = 16
		}
		if h <= 0 {
			h = 16
		}
		b = model.NewBuild(name, w, h)
	}

	sess := editor.NewSession(b, s.audit)
	sess.Actor = hello.Actor
	sess.SetHistoryCap(s.historyCap)

	cat := s.pipeline.Catalog()
	if !writeJSON(conn, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		CatalogDigest:   cat.Digest,
		CatalogCount:    cat.Len(),
		Build:           sess.Build(),
		ActiveLayer:     sess.ActiveLayer(),
	}) {
		return nil, false
	}
	return sess, true
}

// route dispatches one inbound message inside the session loop.
func (s *Server) route(ctx context.Context, sess *editor.Session, msg []byte, out chan<- []byte, genDone chan<- genOutcome) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		sendError(ctx, out, protocol.ErrProtoBadRequest, "undecodable message")
		return
	}
	if base.ProtocolVersion != protocol.Version {
		sendError(ctx, out, protocol.ErrProtoBadRequest, "bad protocol_version")
		return
	}

	switch base.Type {
	case protocol.TypeEdit:
		var edit protocol.EditMsg
		if err := json.Unmarshal(msg, &edit); err != nil {
			sendError(ctx, out, protocol.ErrProtoBadRequest, "bad EDIT payload")
			return
		}
		s.applyEdit(sess, edit)
		s.persist(sess)
		sendState(ctx, out, sess)

	case protocol.TypeGenerate:
		var gen protocol.GenerateMsg
		if err := json.Unmarshal(msg, &gen); err != nil || strings.TrimSpace(gen.Request) == "" {
			sendError(ctx, out, protocol.ErrProtoBadRequest, "bad GENERATE payload")
			return
		}
		s.startGenerate(ctx, sess, gen, genDone)

	default:
		sendError(ctx, out, protocol.ErrProtoBadRequest, "unexpected message type "+base.Type)
	}
}

func (s *Server) applyEdit(sess *editor.Session, e protocol.EditMsg) {
	switch e.Op {
	case protocol.EditPlace:
		sess.PlaceBlock(e.X, e.Y, e.Z, e.BlockID)
	case protocol.EditAddLayer:
		sess.AddLayer()
	case protocol.EditRemoveLayer:
		sess.RemoveLayer(e.Index)
	case protocol.EditDuplicate:
		sess.DuplicateLayer(e.Index)
	case protocol.EditToggle:
		sess.ToggleLayerVisibility(e.Index)
	case protocol.EditSetActive:
		sess.SetActiveLayer(e.Index)
	case protocol.EditUndo:
		sess.Undo()
	case protocol.EditRedo:
		sess.Redo()
	case protocol.EditResize:
		sess.Resize(e.Width, e.Height)
	}
	// Unknown ops fall through silently: the editor stays usable.
}

// startGenerate snapshots the prompt from the current build and runs the
// external call off the session loop. The session keeps taking edits; the
// merge in finishGenerate re-validates bounds against the build as it then
// is.
func (s *Server) startGenerate(ctx context.Context, sess *editor.Session, gen protocol.GenerateMsg, genDone chan<- genOutcome) {
	s.genRequests.Add(1)

	completer, err := s.newCompleter()
	if err != nil {
		s.genFailures.Add(1)
		genDone <- genOutcome{code: protocol.ErrAINoKey, err: err}
		return
	}

	system := s.pipeline.Prompt(sess.Build(), gen.IncludeState)
	user := assist.UserMessage(gen.Request)
	cat := s.pipeline.Catalog()

	go func() {
		text, err := completer.Complete(ctx, system, user)
		if err != nil {
			genDone <- genOutcome{code: protocol.ErrAITransport, err: err}
			return
		}
		reply, err := assist.ParseReply(text, cat)
		if err != nil {
			genDone <- genOutcome{code: protocol.ErrAIBadReply, err: err}
			return
		}
		genDone <- genOutcome{reply: reply}
	}()
}

func (s *Server) finishGenerate(ctx context.Context, sess *editor.Session, g genOutcome, out chan<- []byte) {
	if g.err != nil {
		s.genFailures.Add(1)
		s.log.Printf("generate failed: %v", g.err)
		msg := "generation failed, try again"
		if g.code == protocol.ErrAIBadReply {
			msg = "failed to parse the model reply, try again"
		}
		sendError(ctx, out, g.code, msg)
		return
	}

	applied := sess.Merge(g.reply.Instructions)
	s.persist(sess)
	res := assist.Result{
		Explanation: g.reply.Explanation,
		Requested:   len(g.reply.Instructions) + g.reply.Dropped,
		Applied:     applied,
		Dropped:     g.reply.Dropped + len(g.reply.Instructions) - applied,
		LayerCount:  len(sess.Build().Layers),
	}
	send(ctx, out, protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Result:          res,
	})
	sendState(ctx, out, sess)
}

// persist saves the session build. Best-effort: a storage hiccup must not
// kill a live editing session.
func (s *Server) persist(sess *editor.Session) {
	if s.store == nil {
		return
	}
	if err := s.store.Upsert(sess.Build()); err != nil {
		s.log.Printf("persist build %s: %v", sess.Build().ID, err)
	}
}

func sendState(ctx context.Context, out chan<- []byte, sess *editor.Session) {
	send(ctx, out, protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Build:           sess.Build(),
		ActiveLayer:     sess.ActiveLayer(),
	})
}

func sendError(ctx context.Context, out chan<- []byte, code, message string) {
	send(ctx, out, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	})
}

func send(ctx context.Context, out chan<- []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	// Block until the writer drains the message; a client too slow to keep
	// up trips the write deadline, which cancels ctx and ends the session.
	// RESULT and ERROR frames must never be dropped silently.
	select {
	case out <- b:
	case <-ctx.Done():
	}
}

func writeJSON(conn *websocket.Conn, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return false
	}
	return true
}
