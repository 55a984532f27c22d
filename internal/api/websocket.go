// internal/api/websocket.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/BookFlow/internal/models"
	"github.com/Corphon/BookFlow/internal/services"
	"github.com/Corphon/BookFlow/internal/utils"
	"github.com/Corphon/BookFlow/internal/workflow"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// QueueMessage is pushed to a client whenever its queue changes.
type QueueMessage struct {
	Type     string          `json:"type"`
	Role     models.Role     `json:"role"`
	Chapters []workflow.View `json:"chapters"`
	TakenAt  time.Time       `json:"taken_at"`
}

// queueClient is one live socket bound to a role.
type queueClient struct {
	conn      *websocket.Conn
	identity  models.Identity
	closed    int32
	createdAt time.Time
}

func (client *queueClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		client.conn.Close()
	}
}

func (client *queueClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// QueueHub streams live work queues over WebSockets. Each client holds its own
// store subscription, cancelled when the socket closes.
type QueueHub struct {
	chapters *services.ChapterService
	log      *utils.Logger

	mu      sync.RWMutex
	clients map[*queueClient]struct{}
}

func NewQueueHub(chapters *services.ChapterService, log *utils.Logger) *QueueHub {
	return &QueueHub{
		chapters: chapters,
		log:      log.With("component", "queue_hub"),
		clients:  make(map[*queueClient]struct{}),
	}
}

func (h *QueueHub) register(client *queueClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.log.Info("✅ queue socket connected", "user", client.identity.Username, "role", client.identity.Role)
}

func (h *QueueHub) unregister(client *queueClient) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()
	client.Close()
	if ok {
		h.log.Info("queue socket closed", "user", client.identity.Username, "lifetime", time.Since(client.createdAt))
	}
}

// Status counts open sockets per role.
func (h *QueueHub) Status() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int)
	for client := range h.clients {
		out[string(client.identity.Role)]++
	}
	return out
}

// Shutdown closes every socket.
func (h *QueueHub) Shutdown() {
	h.mu.Lock()
	clients := make([]*queueClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()
	for _, client := range clients {
		client.Close()
	}
}

// Serve upgrades the request and streams the caller's queue until disconnect.
func (h *QueueHub) Serve(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("❌ websocket upgrade failed", "error", err)
		return
	}

	client := &queueClient{conn: conn, identity: identity, createdAt: time.Now()}
	h.register(client)
	defer h.unregister(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := h.chapters.WatchQueue(ctx)
	if err != nil {
		h.log.Error("subscribe failed", "error", err)
		return
	}
	defer sub.Cancel()

	go h.readLoop(client, cancel)
	h.writeLoop(ctx, client, sub.C)
}

// readLoop drains client frames so pongs and close frames are processed.
func (h *QueueHub) readLoop(client *queueClient, cancel context.CancelFunc) {
	defer cancel()
	client.conn.SetReadLimit(4096)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *QueueHub) writeLoop(ctx context.Context, client *queueClient, snapshots <-chan models.Snapshot) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	var (
		lastSignature string
		sent          bool
	)
	for {
		select {
		case <-ctx.Done():
			client.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return

		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			queue := workflow.Queue(client.identity.Role, snap.Chapters)
			sig := signature(queue)
			if sent && sig == lastSignature {
				continue
			}
			if err := h.send(client, queue, snap.TakenAt); err != nil {
				h.log.Warn("⚠️ queue push failed", "user", client.identity.Username, "error", err)
				return
			}
			lastSignature, sent = sig, true
			h.log.Debug("queue pushed", "user", client.identity.Username, "size", len(queue))

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *QueueHub) send(client *queueClient, queue []models.Chapter, takenAt time.Time) error {
	if client.IsClosed() {
		return fmt.Errorf("client closed")
	}
	views := make([]workflow.View, len(queue))
	for i, ch := range queue {
		views[i] = workflow.Render(ch)
	}
	payload, err := json.Marshal(QueueMessage{
		Type:     "queue",
		Role:     client.identity.Role,
		Chapters: views,
		TakenAt:  takenAt,
	})
	if err != nil {
		return err
	}
	client.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return client.conn.WriteMessage(websocket.TextMessage, payload)
}

// signature identifies a queue by member ids and revisions.
func signature(queue []models.Chapter) string {
	var b strings.Builder
	for _, ch := range queue {
		fmt.Fprintf(&b, "%s@%d;", ch.ID, ch.Revision)
	}
	return b.String()
}
