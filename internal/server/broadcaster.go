package server

// Broadcaster is the server-initiated delivery path used by request
// handlers outside the live-connection flow (system messages, REST
// location fallbacks). Delivery guarantees match the
// connection-driven broadcasts.
type Broadcaster interface {
	SendToOrder(orderId string, ev *ServerEvent) int
	SendToIdentity(userId string, ev *ServerEvent) bool
}

// SendToOrder fans the event out to every member of the order's room
// and returns the number of connections it was delivered to.
func (h *Hub) SendToOrder(orderId string, ev *ServerEvent) int {
	return h.broadcastToOrder(orderId, ev)
}

// SendToIdentity delivers the event to the user's most recent
// connection, per the registry's last-writer-wins policy. It reports
// false when the user has no live connection or the connection could
// not accept the event.
func (h *Hub) SendToIdentity(userId string, ev *ServerEvent) bool {
	c, ok := h.registry.lookup(userId)
	if !ok {
		return false
	}

	return c.queueEvent(ev)
}
