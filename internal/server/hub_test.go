package server

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tdnguyen/go-deliveryhub/internal/database"
	"github.com/tdnguyen/go-deliveryhub/internal/stats"
	"github.com/tdnguyen/go-deliveryhub/internal/testutil"
	"github.com/tdnguyen/go-deliveryhub/internal/types"
)

func newTestHub(t *testing.T, repo database.DeliveryRepository) *Hub {
	t.Helper()

	hub, err := NewHub(testutil.TestLogger(t), repo, &stats.MockStatsUpdater{}, 50)
	assert.NoError(t, err, "expected hub construction to succeed")
	return hub
}

func newTestClient(t *testing.T, hub *Hub) *Client {
	t.Helper()

	return &Client{
		sessionId: "test-session",
		hub:       hub,
		log:       testutil.TestLogger(t),
		send:      make(chan *ServerEvent, 16),
		stop:      make(chan struct{}),
	}
}

// nextEvent pops the next queued event for the client without
// blocking; it fails the test when none is waiting.
func nextEvent(t *testing.T, c *Client) *ServerEvent {
	t.Helper()

	select {
	case ev := <-c.send:
		return ev
	default:
		t.Fatal("expected an event to be queued for the client, but none was")
		return nil
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()

	select {
	case ev := <-c.send:
		t.Fatalf("expected no event for the client, got %+v", ev)
	default:
	}
}

func Test_RegisterClient_detachClient(t *testing.T) {
	hub := newTestHub(t, &database.MockDeliveryRepository{})
	c := newTestClient(t, hub)

	hub.RegisterClient(c)
	assert.Contains(t, hub.clients, c, "expected client to be tracked after registration")

	hub.detachClient(c)
	assert.NotContains(t, hub.clients, c, "expected client to be removed after detach")

	// Detaching an unknown client is a no-op.
	hub.detachClient(c)
	assert.Empty(t, hub.clients)
}

func Test_broadcastToOrder(t *testing.T) {
	t.Run("delivers to every member", func(t *testing.T) {
		hub := newTestHub(t, &database.MockDeliveryRepository{})
		c1 := newTestClient(t, hub)
		c2 := newTestClient(t, hub)
		outsider := newTestClient(t, hub)

		hub.rooms.join("o1", c1)
		hub.rooms.join("o1", c2)

		ev := NewOutboundEvent()
		ev.NewMessage = &NewMessage{}
		delivered := hub.broadcastToOrder("o1", ev)

		assert.Equal(t, 2, delivered, "expected delivery to both members")
		assert.NotNil(t, nextEvent(t, c1).NewMessage)
		assert.NotNil(t, nextEvent(t, c2).NewMessage)
		assertNoEvent(t, outsider)
	})

	t.Run("unknown room delivers to nobody", func(t *testing.T) {
		hub := newTestHub(t, &database.MockDeliveryRepository{})
		assert.Equal(t, 0, hub.broadcastToOrder("missing", NewOutboundEvent()))
	})

	t.Run("slow member is dropped without stalling others", func(t *testing.T) {
		hub := newTestHub(t, &database.MockDeliveryRepository{})

		slow := newTestClient(t, hub)
		slow.send = make(chan *ServerEvent) // no buffer: every delivery fails
		healthy := newTestClient(t, hub)

		hub.rooms.join("o1", slow)
		hub.rooms.join("o1", healthy)

		delivered := hub.broadcastToOrder("o1", NewOutboundEvent())

		assert.Equal(t, 1, delivered, "expected delivery to the healthy member only")
		assert.NotNil(t, nextEvent(t, healthy))

		select {
		case <-slow.stop:
			// slow member was stopped for reclamation
		default:
			t.Error("expected slow member to be stopped")
		}
	})
}

func Test_releaseRooms(t *testing.T) {
	hub := newTestHub(t, &database.MockDeliveryRepository{})
	c := newTestClient(t, hub)
	other := newTestClient(t, hub)

	hub.rooms.join("o1", c)
	hub.rooms.join("o2", c)
	hub.rooms.join("o2", other)

	hub.releaseRooms(c)

	assert.Equal(t, 1, hub.rooms.count(), "expected o1 reclaimed and o2 kept")
	assert.True(t, hub.rooms.contains("o2", other))
}

// Test_orderChatFlow walks the shared chat path: a customer and the
// assigned shipper join the same order, the shipper sends a message,
// and both connections observe it after it was stored.
func Test_orderChatFlow(t *testing.T) {
	repo := &database.MockDeliveryRepository{}
	repo.On("GetOrderById", "o1").Return(database.Order{
		Id:         "o1",
		CustomerId: "c1",
		ShipperId:  sql.NullString{String: "s1", Valid: true},
		Status:     "shipping",
	}, nil)
	repo.On("GetRecentMessages", "o1", 50).Return([]database.Message{}, nil)
	repo.On("CreateMessage", mock.Anything).Return(database.Message{
		Id:         "m1",
		OrderId:    "o1",
		SenderId:   sql.NullString{String: "s1", Valid: true},
		SenderType: "shipper",
		Body:       "picked up your order",
		Kind:       "text",
		CreatedAt:  Now(),
	}, nil)
	hub := newTestHub(t, repo)

	customer := authenticatedClient(t, hub, "c1", types.KindCustomer)
	shipper := authenticatedClient(t, hub, "s1", types.KindShipper)

	for _, c := range []*Client{customer, shipper} {
		c.handleEvent(&ClientEvent{JoinOrder: &JoinOrder{OrderId: "o1"}})
		assert.NotNil(t, nextEvent(t, c).ChatHistory)
		assert.NotNil(t, nextEvent(t, c).JoinedOrder)
	}

	shipper.handleEvent(&ClientEvent{SendMessage: &SendMessage{OrderId: "o1", Body: "picked up your order"}})

	for _, c := range []*Client{customer, shipper} {
		got := nextEvent(t, c)
		if assert.NotNil(t, got.NewMessage) {
			assert.Equal(t, "picked up your order", got.NewMessage.Message.Body)
		}
		assertNoEvent(t, c)
	}
}

// Test_locationIsolation checks that a shipper's location pings reach
// only the members of that order's room, each exactly once.
func Test_locationIsolation(t *testing.T) {
	lon, lat := 106.7, 10.77

	repo := &database.MockDeliveryRepository{}
	repo.On("GetOrderById", "o1").Return(database.Order{
		Id:         "o1",
		CustomerId: "c1",
		ShipperId:  sql.NullString{String: "s1", Valid: true},
		Status:     "shipping",
	}, nil)
	repo.On("GetRecentMessages", "o1", 50).Return([]database.Message{}, nil)
	repo.On("CreateLocation", mock.Anything).Return(database.Location{
		Id:        "l1",
		ShipperId: "s1",
		OrderId:   "o1",
		Longitude: lon,
		Latitude:  lat,
		Timestamp: Now(),
		IsActive:  true,
	}, nil)
	hub := newTestHub(t, repo)

	customer := authenticatedClient(t, hub, "c1", types.KindCustomer)
	customer.handleEvent(&ClientEvent{JoinOrder: &JoinOrder{OrderId: "o1"}})
	nextEvent(t, customer) // chat_history
	nextEvent(t, customer) // joined_order

	bystander := authenticatedClient(t, hub, "c2", types.KindCustomer)
	shipper := authenticatedClient(t, hub, "s1", types.KindShipper)

	shipper.handleEvent(&ClientEvent{UpdateLocation: &UpdateLocation{OrderId: "o1", Longitude: &lon, Latitude: &lat}})

	got := nextEvent(t, customer)
	if assert.NotNil(t, got.LocationUpdate) {
		assert.Equal(t, "s1", got.LocationUpdate.ShipperId)
	}
	assertNoEvent(t, customer)
	assertNoEvent(t, bystander)
}

// Test_unassignedShipperCannotJoin checks that a join denial has no
// side effect on room state.
func Test_unassignedShipperCannotJoin(t *testing.T) {
	repo := &database.MockDeliveryRepository{}
	repo.On("GetOrderById", "o2").Return(database.Order{
		Id:         "o2",
		CustomerId: "c1",
		ShipperId:  sql.NullString{String: "other-shipper", Valid: true},
		Status:     "shipping",
	}, nil)
	hub := newTestHub(t, repo)

	shipper := authenticatedClient(t, hub, "s1", types.KindShipper)
	shipper.handleEvent(&ClientEvent{JoinOrder: &JoinOrder{OrderId: "o2"}})

	ev := nextEvent(t, shipper)
	assert.Equal(t, CodeAuthDenied, ev.Error.Code)
	assert.Equal(t, 0, hub.rooms.count(), "expected no room to be created for a denied join")
}

func Test_Shutdown(t *testing.T) {
	t.Run("returns once all clients are gone", func(t *testing.T) {
		hub := newTestHub(t, &database.MockDeliveryRepository{})
		c := newTestClient(t, hub)
		hub.RegisterClient(c)

		go func() {
			<-c.stop
			c.cleanup()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		assert.NoError(t, hub.Shutdown(ctx), "expected shutdown to complete")
	})

	t.Run("reports clients that never leave", func(t *testing.T) {
		hub := newTestHub(t, &database.MockDeliveryRepository{})
		hub.RegisterClient(newTestClient(t, hub))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		assert.Error(t, hub.Shutdown(ctx), "expected shutdown to time out")
	})
}
