package server

import "sync"

// roomManager tracks which connections are subscribed to each order's
// live updates. Rooms are created lazily on first join and removed
// when their last member leaves. All structural mutation happens
// under the lock; callers that deliver to members take a snapshot
// first so no I/O runs while the lock is held.
type roomManager struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func newRoomManager() *roomManager {
	return &roomManager{rooms: make(map[string]map[*Client]struct{})}
}

// join adds the client to the order's room. It is idempotent; added
// reports whether the client was not already a member, created
// whether the room itself was created by this call.
func (rm *roomManager) join(orderId string, c *Client) (added, created bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	members, ok := rm.rooms[orderId]
	if !ok {
		members = make(map[*Client]struct{})
		rm.rooms[orderId] = members
		created = true
	}

	if _, ok := members[c]; !ok {
		members[c] = struct{}{}
		added = true
	}

	return added, created
}

// leave removes the client from the order's room, reclaiming the room
// when it empties. Leaving a room the client is not in is a no-op.
func (rm *roomManager) leave(orderId string, c *Client) (removed bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	return rm.leaveLocked(orderId, c)
}

func (rm *roomManager) leaveLocked(orderId string, c *Client) bool {
	members, ok := rm.rooms[orderId]
	if !ok {
		return false
	}

	if _, ok := members[c]; !ok {
		return false
	}

	delete(members, c)
	if len(members) == 0 {
		delete(rm.rooms, orderId)
	}

	return true
}

// leaveAll removes the client from every room it is a member of and
// returns the ids of the rooms it left.
func (rm *roomManager) leaveAll(c *Client) []string {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	var left []string
	for orderId, members := range rm.rooms {
		if _, ok := members[c]; ok {
			rm.leaveLocked(orderId, c)
			left = append(left, orderId)
		}
	}

	return left
}

// members returns a snapshot of the room's membership. The snapshot
// is safe to iterate without holding the lock.
func (rm *roomManager) members(orderId string) []*Client {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	members, ok := rm.rooms[orderId]
	if !ok {
		return nil
	}

	snapshot := make([]*Client, 0, len(members))
	for c := range members {
		snapshot = append(snapshot, c)
	}

	return snapshot
}

func (rm *roomManager) contains(orderId string, c *Client) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	members, ok := rm.rooms[orderId]
	if !ok {
		return false
	}

	_, ok = members[c]
	return ok
}

func (rm *roomManager) count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	return len(rm.rooms)
}
