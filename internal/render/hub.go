package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"sptlb/internal/toast"
	logx "sptlb/pkg/logx"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxInbound = 512
	clientBuf  = 64
)

// Frame is one message pushed to overlay clients.
type Frame struct {
	Type     string          `json:"type"` // snapshot, show, fade, remove, move, cue
	ID       string          `json:"id,omitempty"`
	Toast    *toast.Toast    `json:"toast,omitempty"`
	Position *toast.Position `json:"position,omitempty"`
	Category toast.Category  `json:"category,omitempty"`
	Cues     []toast.Cue     `json:"cues,omitempty"`
	Toasts   []toast.Toast   `json:"toasts,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() { c.once.Do(func() { close(c.send) }) }

// Hub broadcasts toast frames to websocket clients. It implements
// toast.Renderer and toast.CuePlayer. A client that cannot keep up is
// disconnected rather than slowing the engine down.
type Hub struct {
	log      logx.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	clients  map[*client]struct{}
	heights  map[string]int
	snapshot func() []toast.Toast
	closed   bool

	dropped atomic.Uint64
}

// NewHub creates a hub. Empty allowedOrigins accepts any Origin.
func NewHub(log logx.Logger, allowedOrigins []string) *Hub {
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &Hub{
		log:     log.With(logx.String("comp", "render.ws")),
		clients: map[*client]struct{}{},
		heights: map[string]int{},
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := map[string]bool{}
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
}

// SetSnapshot installs the source of the frame sent to newly connected clients.
// The frame is the client's reset state: it lists what is on screen, never the
// pending queue, which reaches clients later as show events.
func (h *Hub) SetSnapshot(fn func() []toast.Toast) {
	h.mu.Lock()
	h.snapshot = fn
	h.mu.Unlock()
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped counts clients disconnected for falling behind.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Broadcast sends f to every connected client without blocking.
func (h *Hub) Broadcast(f Frame) {
	b, err := json.Marshal(f)
	if err != nil {
		h.log.Warn("frame encode failed", logx.String("type", f.Type), logx.Err(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			delete(h.clients, c)
			c.close()
			h.dropped.Add(1)
			h.log.Debug("slow websocket client dropped")
		}
	}
}

func (h *Hub) Show(t toast.Toast) error {
	h.mu.Lock()
	h.heights[t.ID] = EstimateHeight(t.Content)
	h.mu.Unlock()
	h.Broadcast(Frame{Type: "show", ID: t.ID, Toast: &t})
	return nil
}

func (h *Hub) FadeOut(id string) { h.Broadcast(Frame{Type: "fade", ID: id}) }

func (h *Hub) Remove(id string) {
	h.mu.Lock()
	delete(h.heights, id)
	h.mu.Unlock()
	h.Broadcast(Frame{Type: "remove", ID: id})
}

func (h *Hub) Move(id string, pos toast.Position) {
	h.Broadcast(Frame{Type: "move", ID: id, Position: &pos})
}

func (h *Hub) Height(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.heights[id]
}

func (h *Hub) Play(ctx context.Context, cat toast.Category, cues []toast.Cue) error {
	if len(cues) == 0 {
		return nil
	}
	h.Broadcast(Frame{Type: "cue", Category: cat, Cues: cues})
	return nil
}

// EstimateHeight approximates the pixel height an overlay gives a toast.
func EstimateHeight(c toast.Content) int {
	const (
		header = 64
		line   = 18
	)
	h := header
	for _, s := range []string{c.Outcome, c.Meta, c.Streak, c.Footer} {
		if s != "" {
			h += line
		}
	}
	h += len(c.Lines) * line
	if c.Highlight {
		h += 6
	}
	return h
}

// ServeHTTP upgrades the request and streams frames until the peer leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", logx.Err(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientBuf)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	snap := h.snapshot
	h.mu.Unlock()

	// The snapshot is taken after registering so it is never older than the
	// first broadcast the client receives. Clients treat it as a reset.
	if snap != nil {
		if b, err := json.Marshal(Frame{Type: "snapshot", Toasts: snap()}); err == nil {
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				select {
				case c.send <- b:
				default:
				}
			}
			h.mu.Unlock()
		}
	}

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readPump drains the connection so control frames are processed; overlay
// clients never send anything meaningful.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxInbound)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
