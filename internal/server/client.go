package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tdnguyen/go-deliveryhub/internal/database"
	"github.com/tdnguyen/go-deliveryhub/internal/stats"
	"github.com/tdnguyen/go-deliveryhub/internal/types"
	"github.com/teris-io/shortid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one live connection. Its identity is nil until the
// connection sends an authenticate event; the identity field is owned
// exclusively by the read pump and never written from elsewhere.
type Client struct {
	sessionId   string
	conn        *websocket.Conn
	hub         *Hub
	log         *log.Logger
	identity    *types.Identity
	send        chan *ServerEvent
	stop        chan struct{}
	stopOnce    sync.Once
	cleanupOnce sync.Once
}

func NewClient(conn *websocket.Conn, hub *Hub, l *log.Logger) *Client {
	return &Client{
		sessionId: shortid.MustGenerate(),
		conn:      conn,
		hub:       hub,
		log:       l,
		send:      make(chan *ServerEvent, 256),
		stop:      make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(ev)
			if err != nil {
				c.log.Printf("session %s: serialize event: %v", c.sessionId, err)
				continue
			}

			if !c.writeMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("session %s: read: %v", c.sessionId, err)
			}
			break
		}

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.queueEvent(ErrValidation(0, "invalid event format"))
			continue
		}

		c.handleEvent(&ev)
	}
}

// handleEvent routes one inbound event. Every error is reported only
// to this connection and leaves registry and room state untouched.
func (c *Client) handleEvent(ev *ClientEvent) {
	switch {
	case ev.Authenticate != nil:
		c.handleAuthenticate(ev)
	case ev.JoinOrder != nil:
		c.handleJoinOrder(ev)
	case ev.SendMessage != nil:
		c.handleSendMessage(ev)
	case ev.UpdateLocation != nil:
		c.handleUpdateLocation(ev)
	case ev.MarkMessagesRead != nil:
		c.handleMarkMessagesRead(ev)
	default:
		c.queueEvent(ErrValidation(ev.Id, "unknown event"))
	}
}

// handleAuthenticate attaches the client-supplied identity to the
// connection. The token field is accepted but not verified against
// the issuer; known gap inherited from the platform's first
// iteration, tracked for a follow-up against the auth service.
// Re-authentication is permitted and replaces the prior identity and
// its registry entry.
func (c *Client) handleAuthenticate(ev *ClientEvent) {
	auth := ev.Authenticate
	if auth.UserId == "" || !auth.UserType.Valid() {
		fail := newServerEvent(ev.Id)
		fail.AuthenticationFailed = &AuthenticationFailed{Reason: "user_id and a valid user_type are required"}
		c.queueEvent(fail)
		return
	}

	if c.identity != nil && c.identity.Id != auth.UserId {
		c.hub.registry.unregister(c.identity.Id, c)
	}

	c.identity = &types.Identity{Id: auth.UserId, Kind: auth.UserType}
	c.hub.registry.register(auth.UserId, c)

	c.log.Printf("session %s: authenticated as %s (%s)", c.sessionId, auth.UserId, auth.UserType)

	ack := newServerEvent(ev.Id)
	ack.Authenticated = &Authenticated{UserId: auth.UserId, UserType: auth.UserType}
	c.queueEvent(ack)
}

func (c *Client) handleJoinOrder(ev *ClientEvent) {
	if c.identity == nil {
		c.queueEvent(ErrAuthenticationRequired(ev.Id))
		return
	}

	orderId := ev.JoinOrder.OrderId
	if orderId == "" {
		c.queueEvent(ErrValidation(ev.Id, "order_id is required"))
		return
	}

	allowed, err := c.hub.gate.CanJoin(*c.identity, orderId)
	if err != nil {
		c.log.Printf("session %s: authorize join: %v", c.sessionId, err)
		c.queueEvent(ErrPersistence(ev.Id, "failed to authorize join"))
		return
	}
	if !allowed {
		c.queueEvent(ErrAuthorizationDenied(ev.Id, "access denied to this order"))
		return
	}

	// Fetch the replay before changing membership so a storage
	// failure leaves no visible side effect.
	recent, err := c.hub.repo.GetRecentMessages(orderId, c.hub.historyLimit)
	if err != nil {
		c.log.Printf("session %s: fetch history for order %s: %v", c.sessionId, orderId, err)
		c.queueEvent(ErrPersistence(ev.Id, "failed to load chat history"))
		return
	}

	_, created := c.hub.rooms.join(orderId, c)
	if created {
		c.hub.stats.Incr(stats.ActiveRooms)
	}

	history := newServerEvent(ev.Id)
	history.ChatHistory = &ChatHistory{OrderId: orderId, Messages: chronological(recent)}
	c.queueEvent(history)

	ack := newServerEvent(ev.Id)
	ack.JoinedOrder = &JoinedOrder{OrderId: orderId}
	c.queueEvent(ack)

	c.log.Printf("session %s: user %s joined order %s", c.sessionId, c.identity.Id, orderId)
}

// handleSendMessage persists the message and fans it out to the
// order's room. The sender is not required to have joined the room
// first; deliberate allowance carried over from the platform's
// original behaviour, revisit if clients start relying on it.
func (c *Client) handleSendMessage(ev *ClientEvent) {
	if c.identity == nil {
		c.queueEvent(ErrAuthenticationRequired(ev.Id))
		return
	}

	msg := ev.SendMessage
	if msg.OrderId == "" || msg.Body == "" {
		c.queueEvent(ErrValidation(ev.Id, "order_id and body are required"))
		return
	}

	kind := msg.Kind
	if kind == "" {
		kind = types.MessageText
	}
	if !kind.Valid() || kind == types.MessageSystem {
		c.queueEvent(ErrValidation(ev.Id, "invalid message kind"))
		return
	}

	// Write-then-notify: the message must be durably stored before
	// any member can observe it.
	saved, err := c.hub.repo.CreateMessage(database.CreateMessageParams{
		OrderId:    msg.OrderId,
		SenderId:   c.identity.Id,
		SenderType: string(c.identity.Kind),
		Body:       msg.Body,
		Kind:       string(kind),
	})
	if err != nil {
		c.log.Printf("session %s: save message: %v", c.sessionId, err)
		c.queueEvent(ErrPersistence(ev.Id, "failed to send message"))
		return
	}

	out := newServerEvent(0)
	out.NewMessage = &NewMessage{Message: messageToType(saved)}
	c.hub.broadcastToOrder(msg.OrderId, out)
	c.hub.stats.Incr(stats.MessagesSent)
}

func (c *Client) handleUpdateLocation(ev *ClientEvent) {
	if c.identity == nil {
		c.queueEvent(ErrAuthenticationRequired(ev.Id))
		return
	}

	loc := ev.UpdateLocation
	if c.identity.Kind != types.KindShipper {
		c.queueEvent(ErrAuthorizationDenied(ev.Id, "only shippers can update location"))
		return
	}

	if loc.OrderId == "" || loc.Longitude == nil || loc.Latitude == nil {
		c.queueEvent(ErrValidation(ev.Id, "order_id, longitude and latitude are required"))
		return
	}

	allowed, err := c.hub.gate.CanUpdateLocation(*c.identity, loc.OrderId)
	if err != nil {
		c.log.Printf("session %s: authorize location update: %v", c.sessionId, err)
		c.queueEvent(ErrPersistence(ev.Id, "failed to authorize location update"))
		return
	}
	if !allowed {
		c.queueEvent(ErrAuthorizationDenied(ev.Id, "not assigned to this order"))
		return
	}

	saved, err := c.hub.repo.CreateLocation(database.CreateLocationParams{
		ShipperId: c.identity.Id,
		OrderId:   loc.OrderId,
		Longitude: *loc.Longitude,
		Latitude:  *loc.Latitude,
		Address:   loc.Address,
		Accuracy:  loc.Accuracy,
		Speed:     loc.Speed,
		Heading:   loc.Heading,
	})
	if err != nil {
		c.log.Printf("session %s: save location: %v", c.sessionId, err)
		c.queueEvent(ErrPersistence(ev.Id, "failed to update location"))
		return
	}

	out := newServerEvent(0)
	out.LocationUpdate = &LocationUpdate{
		ShipperId:   saved.ShipperId,
		Coordinates: types.GeoPoint{Longitude: saved.Longitude, Latitude: saved.Latitude},
		Address:     saved.Address,
		Timestamp:   saved.Timestamp,
		Speed:       saved.Speed,
		Heading:     saved.Heading,
	}
	c.hub.broadcastToOrder(loc.OrderId, out)
	c.hub.stats.Incr(stats.LocationUpdates)
}

// handleMarkMessagesRead appends a read receipt for the caller to
// each named message that does not already carry one from them. The
// acknowledgment lists only the ids actually updated.
func (c *Client) handleMarkMessagesRead(ev *ClientEvent) {
	if c.identity == nil {
		c.queueEvent(ErrAuthenticationRequired(ev.Id))
		return
	}

	req := ev.MarkMessagesRead
	if req.OrderId == "" || len(req.MessageIds) == 0 {
		c.queueEvent(ErrValidation(ev.Id, "order_id and message_ids are required"))
		return
	}

	var updated []string
	for _, messageId := range req.MessageIds {
		applied, err := c.hub.repo.AppendMessageReader(messageId, database.MessageRead{
			ReaderId:   c.identity.Id,
			ReaderType: string(c.identity.Kind),
			ReadAt:     Now(),
		})
		if err != nil {
			c.log.Printf("session %s: mark message %s read: %v", c.sessionId, messageId, err)
			c.queueEvent(ErrPersistence(ev.Id, "failed to mark messages as read"))
			return
		}

		if applied {
			updated = append(updated, messageId)
		}
	}

	ack := newServerEvent(ev.Id)
	ack.MessagesMarkedRead = &MessagesMarkedRead{OrderId: req.OrderId, MessageIds: updated}
	c.queueEvent(ack)
}

// queueEvent enqueues an event for delivery without blocking. A full
// buffer means the connection is not keeping up; the event is dropped
// and the caller decides whether to stop the client.
func (c *Client) queueEvent(ev *ServerEvent) bool {
	select {
	case c.send <- ev:
		return true
	default:
		c.log.Printf("session %s: send buffer full, dropping event", c.sessionId)
		return false
	}
}

func (c *Client) writeMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("session %s: write: %v", c.sessionId, err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// cleanup fully reclaims the handle: registry entry (only if it still
// points here), every room membership, hub bookkeeping. Safe to call
// more than once.
func (c *Client) cleanup() {
	c.cleanupOnce.Do(func() {
		if c.identity != nil {
			c.hub.registry.unregister(c.identity.Id, c)
		}
		c.hub.releaseRooms(c)
		c.hub.detachClient(c)
		c.stopClient()
	})
}

func chronological(messages []database.Message) []types.ChatMessage {
	out := make([]types.ChatMessage, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		out = append(out, messageToType(messages[i]))
	}
	return out
}

func messageToType(m database.Message) types.ChatMessage {
	msg := types.ChatMessage{
		Id:         m.Id,
		OrderId:    m.OrderId,
		SenderType: types.UserKind(m.SenderType),
		Body:       m.Body,
		Kind:       types.MessageKind(m.Kind),
		CreatedAt:  m.CreatedAt,
	}

	if m.SenderId.Valid {
		msg.SenderId = m.SenderId.String
	}

	for _, r := range m.ReadBy {
		msg.ReadBy = append(msg.ReadBy, types.ReadReceipt{
			ReaderId:   r.ReaderId,
			ReaderType: types.UserKind(r.ReaderType),
			ReadAt:     r.ReadAt,
		})
	}

	return msg
}
