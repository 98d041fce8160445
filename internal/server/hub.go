package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tdnguyen/go-deliveryhub/internal/database"
	"github.com/tdnguyen/go-deliveryhub/internal/stats"
)

// Hub multiplexes the order chat and shipper location streams over
// the set of live connections. Registry and room maps are guarded by
// their own locks; delivery to members always runs on a snapshot
// taken after the lock is released.
type Hub struct {
	log          *log.Logger
	repo         database.DeliveryRepository
	stats        stats.StatsProvider
	registry     *connectionRegistry
	rooms        *roomManager
	gate         *authGate
	historyLimit int
	clients      map[*Client]struct{}
	clientsLock  sync.Mutex
}

func NewHub(logger *log.Logger, repo database.DeliveryRepository, statsProvider stats.StatsProvider, historyLimit int) (*Hub, error) {
	if historyLimit <= 0 {
		historyLimit = 50
	}

	h := &Hub{
		log:          logger,
		repo:         repo,
		stats:        statsProvider,
		registry:     newConnectionRegistry(),
		rooms:        newRoomManager(),
		gate:         &authGate{repo: repo},
		historyLimit: historyLimit,
		clients:      make(map[*Client]struct{}),
	}

	statsProvider.RegisterMetric(stats.ActiveConnections)
	statsProvider.RegisterMetric(stats.ActiveRooms)
	statsProvider.RegisterMetric(stats.MessagesSent)
	statsProvider.RegisterMetric(stats.LocationUpdates)

	return h, nil
}

func (h *Hub) RegisterClient(c *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	h.clients[c] = struct{}{}
	h.stats.Incr(stats.ActiveConnections)
	h.log.Printf("session %s: connected", c.sessionId)
}

func (h *Hub) detachClient(c *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}

	delete(h.clients, c)
	h.stats.Decr(stats.ActiveConnections)
	h.log.Printf("session %s: disconnected", c.sessionId)
}

// releaseRooms removes the client from every room it belongs to,
// updating the room gauge for rooms that emptied.
func (h *Hub) releaseRooms(c *Client) {
	before := h.rooms.count()
	h.rooms.leaveAll(c)
	for i := h.rooms.count(); i < before; i++ {
		h.stats.Decr(stats.ActiveRooms)
	}
}

// broadcastToOrder delivers an event to every current member of the
// order's room. Delivery to each member is independent: a member
// whose send buffer is full is dropped and stopped so it cannot stall
// the others; its membership is reclaimed via the normal disconnect
// path.
func (h *Hub) broadcastToOrder(orderId string, ev *ServerEvent) int {
	var delivered int
	for _, member := range h.rooms.members(orderId) {
		if member.queueEvent(ev) {
			delivered++
			continue
		}

		h.log.Printf("session %s: too slow for room %s, dropping connection", member.sessionId, orderId)
		member.stopClient()
	}

	return delivered
}

// Shutdown stops every client and waits for their read pumps to
// finish cleanup, bounded by ctx.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.clientsLock.Lock()
	for c := range h.clients {
		c.stopClient()
	}
	h.clientsLock.Unlock()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		h.clientsLock.Lock()
		remaining := len(h.clients)
		h.clientsLock.Unlock()

		if remaining == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("hub shutdown: %d connections still open: %w", remaining, ctx.Err())
		case <-ticker.C:
		}
	}
}
