package server

import "sync"

// connectionRegistry maps a user id to its live connection. The
// registry keeps a single handle per user: a re-registration for the
// same id overwrites the previous mapping (last writer wins), so
// point-to-point delivery reaches the most recent connection only.
type connectionRegistry struct {
	mu     sync.Mutex
	byUser map[string]*Client
}

func newConnectionRegistry() *connectionRegistry {
	return &connectionRegistry{byUser: make(map[string]*Client)}
}

func (r *connectionRegistry) register(userId string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byUser[userId] = c
}

// unregister removes the mapping for userId only if it still points
// at c, so a stale disconnect cannot evict a newer connection that
// re-registered the same user.
func (r *connectionRegistry) unregister(userId string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byUser[userId] == c {
		delete(r.byUser, userId)
	}
}

func (r *connectionRegistry) lookup(userId string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byUser[userId]
	return c, ok
}

func (r *connectionRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.byUser)
}
