package httpbridge

import (
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// extensionHub tracks live /ws/extension connections so the bridge can
// push command envelopes to a connected extension instead of only
// being polled via /tools/execute (SPEC_FULL.md's supplemental
// extension push channel). The channel carries JSON command/result
// framing only — it never bypasses Registry.Route.
type extensionHub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

func newExtensionHub() *extensionHub {
	return &extensionHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// CORS for this channel mirrors the bridge's own
				// Access-Control-Allow-Origin: * policy (spec.md §4.3).
				return true
			},
		},
		conns: make(map[string]*websocket.Conn),
	}
}

func (h *extensionHub) add(conn *websocket.Conn) string {
	id := uuid.NewString()
	h.mu.Lock()
	h.conns[id] = conn
	h.mu.Unlock()
	return id
}

func (h *extensionHub) remove(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}

func (h *extensionHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Push sends envelope to every connected extension, dropping any
// connection whose write fails rather than blocking the caller.
func (h *extensionHub) Push(envelope any) {
	h.mu.Lock()
	targets := make(map[string]*websocket.Conn, len(h.conns))
	for id, c := range h.conns {
		targets[id] = c
	}
	h.mu.Unlock()

	for id, c := range targets {
		if err := c.WriteJSON(envelope); err != nil {
			h.remove(id)
			_ = c.Close()
		}
	}
}

func (h *extensionHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.conns {
		_ = c.Close()
		delete(h.conns, id)
	}
}

// handleExtensionWebsocket upgrades /ws/extension and keeps the
// connection registered until the client disconnects. Inbound frames
// are discarded (a future extension protocol may read acknowledgements
// here); this channel's only current purpose is server→extension push.
func (b *Bridge) handleExtensionWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := b.extHub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Debug("httpbridge: websocket upgrade failed")
		return
	}
	id := b.extHub.add(conn)
	defer func() {
		b.extHub.remove(id)
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !isCloseError(err) {
				b.log.Debug("httpbridge: websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func isCloseError(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		strings.Contains(err.Error(), "use of closed network connection")
}
