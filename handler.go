package livemarkup

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/livefir/livemarkup/internal/memory"
	"github.com/livefir/livemarkup/internal/session"
	"github.com/livefir/livemarkup/internal/token"
)

// Store holds server-side state behind one live view and applies client
// actions to it.
type Store interface {
	// Bindings snapshots the current state as template bindings.
	Bindings() Bindings
	// Change applies one action and reports which binding keys it touched.
	Change(ctx *ActionContext) (ChangedSet, error)
}

// Broadcaster lets a store push updates to its client without a
// triggering action.
type Broadcaster interface {
	Send() error
}

// BroadcastAware is implemented by stores that need server-initiated
// updates: notifications, tickers, background job status.
type BroadcastAware interface {
	OnConnect(ctx context.Context, b Broadcaster) error
	OnDisconnect()
}

// UpdateResponse is one websocket frame: the patch plus result metadata.
type UpdateResponse struct {
	Patch *Patch            `json:"p,omitempty"`
	Meta  *ResponseMetadata `json:"meta,omitempty"`
}

// ResponseMetadata reports the outcome of the action that produced an
// update.
type ResponseMetadata struct {
	Success bool              `json:"success"`
	Errors  map[string]string `json:"errors,omitempty"`
	Action  string            `json:"action,omitempty"`
}

// MountConfig configures the live handler.
type MountConfig struct {
	Template   *Template
	NewStore   func() Store
	Upgrader   *websocket.Upgrader
	Sessions   *session.Manager
	SessionTTL time.Duration
	Tokens     *token.Service
	Memory     *memory.Manager
}

// MountOption is a functional option for Mount.
type MountOption func(*MountConfig)

// WithUpgrader overrides the websocket upgrader, for origin checks and
// buffer sizing.
func WithUpgrader(u *websocket.Upgrader) MountOption {
	return func(c *MountConfig) {
		c.Upgrader = u
	}
}

// WithSessionTTL sets how long an idle HTTP session keeps its store.
func WithSessionTTL(ttl time.Duration) MountOption {
	return func(c *MountConfig) {
		c.SessionTTL = ttl
	}
}

// WithSessionTokens enables signed resume tokens: the full render exposes
// one in the X-Livemarkup-Token header, and a websocket connect carrying
// ?token= resumes that session's store instead of starting fresh.
func WithSessionTokens(svc *token.Service) MountOption {
	return func(c *MountConfig) {
		c.Tokens = svc
	}
}

// WithMemoryLimit caps the total estimated render state held for live
// connections; upgrades beyond the budget are refused.
func WithMemoryLimit(mgr *memory.Manager) MountOption {
	return func(c *MountConfig) {
		c.Memory = mgr
	}
}

// Mount creates an http.Handler serving the template live: plain requests
// get the full render, websocket upgrades get the initial patch followed
// by incremental patches as actions arrive. newStore is called once per
// client so connections never share state.
func Mount(tmpl *Template, newStore func() Store, opts ...MountOption) http.Handler {
	config := MountConfig{
		Template: tmpl,
		NewStore: newStore,
		Upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(&config)
	}
	config.Sessions = session.NewManager(config.SessionTTL)
	return &liveHandler{config: config}
}

type liveHandler struct {
	config MountConfig
}

// connState is the per-connection state: the store, its view, and the
// field errors from the last action.
type connState struct {
	store    Store
	view     *View
	errors   map[string]string
	errorsMu sync.RWMutex
}

func (c *connState) setErrors(errs map[string]string) {
	c.errorsMu.Lock()
	defer c.errorsMu.Unlock()
	c.errors = errs
}

func (c *connState) getErrors() map[string]string {
	c.errorsMu.RLock()
	defer c.errorsMu.RUnlock()
	return c.errors
}

func (h *liveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		h.handleWebSocket(w, r)
		return
	}
	h.handleHTTP(w, r)
}

// handleHTTP serves the full render. The store persists in a cookie-keyed
// session so a page reload sees the same state.
func (h *liveHandler) handleHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		return
	}

	state, sessionID := h.sessionState(w, r)
	if _, err := state.view.Update(state.store.Bindings(), nil); err != nil {
		log.Printf("render failed: %v", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	if h.config.Tokens != nil && sessionID != "" {
		if signed, err := h.config.Tokens.Generate(sessionID); err == nil {
			w.Header().Set("X-Livemarkup-Token", signed)
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(state.view.HTML())); err != nil {
		log.Printf("write failed: %v", err)
	}
}

// sessionState finds or creates the connection state for an HTTP request.
func (h *liveHandler) sessionState(w http.ResponseWriter, r *http.Request) (*connState, string) {
	if cookie, err := r.Cookie("livemarkup_session"); err == nil {
		if s, ok := h.config.Sessions.Get(cookie.Value); ok {
			if state, ok := s.State.(*connState); ok {
				return state, s.ID
			}
		}
	}
	state := &connState{
		store: h.config.NewStore(),
		view:  h.config.Template.NewView(),
	}
	s, err := h.config.Sessions.Create(state)
	if err != nil {
		return state, ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "livemarkup_session",
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
	})
	return state, s.ID
}

func (h *liveHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.config.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("client connected from %s", conn.RemoteAddr())

	// Each connection gets its own store and view; the view accumulates
	// render state between patches. A valid resume token picks up the
	// session minted by the full-page render instead.
	state := h.resumeSession(r)
	if state == nil {
		state = &connState{
			store: h.config.NewStore(),
			view:  h.config.Template.NewView(),
		}
	}
	defer state.view.Close()

	// Initial render: always a full-replace patch.
	patch, err := state.view.Update(state.store.Bindings(), nil)
	if err != nil {
		log.Printf("initial render failed: %v", err)
		return
	}

	if h.config.Memory != nil {
		viewKey := fmt.Sprintf("%p", state)
		// The retained tree dominates a view's footprint, so estimate from
		// the rendered size now that the first render exists.
		if err := h.config.Memory.Track(viewKey, int64(len(state.view.HTML()))+1024); err != nil {
			log.Printf("refusing connection: %v", err)
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "over capacity"))
			return
		}
		defer h.config.Memory.Release(viewKey)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	bc := &connBroadcaster{conn: conn, state: state}
	if aware, ok := state.store.(BroadcastAware); ok {
		if err := aware.OnConnect(ctx, bc); err != nil {
			log.Printf("store OnConnect failed: %v", err)
		}
		defer aware.OnDisconnect()
	}
	if err := writeResponse(conn, &bc.mu, patch, "", state.getErrors()); err != nil {
		log.Printf("initial send failed: %v", err)
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error: %v", err)
			}
			break
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("bad message: %v", err)
			continue
		}
		if msg.Action == "" {
			log.Printf("message without action")
			continue
		}

		patch, err := h.applyAction(state, msg)
		if err != nil {
			log.Printf("action %q failed: %v", msg.Action, err)
			continue
		}
		if patch.Empty() && len(state.getErrors()) == 0 {
			continue
		}
		if err := writeResponse(conn, &bc.mu, patch, msg.Action, state.getErrors()); err != nil {
			log.Printf("websocket write failed: %v", err)
			break
		}
	}

	log.Printf("client disconnected")
}

// resumeSession verifies a ?token= query parameter against the token
// service and returns the session's connection state, or nil.
func (h *liveHandler) resumeSession(r *http.Request) *connState {
	if h.config.Tokens == nil {
		return nil
	}
	raw := r.URL.Query().Get("token")
	if raw == "" {
		return nil
	}
	claims, err := h.config.Tokens.Verify(raw)
	if err != nil {
		log.Printf("resume token rejected: %v", err)
		return nil
	}
	s, ok := h.config.Sessions.Get(claims.SessionID)
	if !ok {
		return nil
	}
	state, _ := s.State.(*connState)
	return state
}

// applyAction runs one action through the store and re-renders. Field
// validation errors are not action failures: they park on the connection
// state for the template to render.
func (h *liveHandler) applyAction(state *connState, msg message) (*Patch, error) {
	ctx := &ActionContext{Action: msg.Action, Data: newActionData(msg.Data)}
	changed, err := state.store.Change(ctx)
	if err != nil {
		var fieldErrs FieldErrors
		if ok := asFieldErrors(err, &fieldErrs); !ok {
			return nil, err
		}
		state.setErrors(fieldErrs.Map())
	} else {
		state.setErrors(nil)
	}
	return state.view.Update(state.store.Bindings(), changed)
}

func asFieldErrors(err error, out *FieldErrors) bool {
	fe, ok := err.(FieldErrors)
	if ok {
		*out = fe
	}
	return ok
}

// connBroadcaster pushes server-initiated updates over one connection.
// Writes share a mutex with the action loop since gorilla connections
// allow one concurrent writer.
type connBroadcaster struct {
	conn  *websocket.Conn
	state *connState
	mu    sync.Mutex
}

func (b *connBroadcaster) Send() error {
	patch, err := b.state.view.Update(b.state.store.Bindings(), nil)
	if err != nil {
		return fmt.Errorf("broadcast render failed: %w", err)
	}
	if patch.Empty() {
		return nil
	}
	return writeResponse(b.conn, &b.mu, patch, "", b.state.getErrors())
}

func writeResponse(conn *websocket.Conn, mu *sync.Mutex, patch *Patch, action string, errs map[string]string) error {
	response := UpdateResponse{
		Meta: &ResponseMetadata{
			Success: len(errs) == 0,
			Errors:  errs,
			Action:  action,
		},
	}
	if !patch.Empty() {
		response.Patch = patch
	}
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	mu.Lock()
	defer mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}
