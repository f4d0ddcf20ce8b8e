package realtime

import (
	"hash/fnv"
	"sync"
)

const registryShards = 32

type registryShard struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

// Registry maps a user id to that user's live connections. Users are spread
// over shards so registration for one user never waits on another shard.
type Registry struct {
	shards [registryShards]*registryShard
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &registryShard{clients: make(map[string]map[*Client]struct{})}
	}
	return r
}

func (r *Registry) shard(userID string) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return r.shards[h.Sum32()%registryShards]
}

// Register adds a connection for its user
func (r *Registry) Register(c *Client) {
	s := r.shard(c.userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		s.clients[c.userID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a connection and reports whether it was present
func (r *Registry) Unregister(c *Client) bool {
	s := r.shard(c.userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.clients[c.userID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(s.clients, c.userID)
	}
	return true
}

// Clients returns a snapshot of the user's connections
func (r *Registry) Clients(userID string) []*Client {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.clients[userID]
	result := make([]*Client, 0, len(set))
	for c := range set {
		result = append(result, c)
	}
	return result
}

// Count returns the number of live connections
func (r *Registry) Count() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		for _, set := range s.clients {
			total += len(set)
		}
		s.mu.RUnlock()
	}
	return total
}

// Each calls fn for a snapshot of every connection
func (r *Registry) Each(fn func(c *Client)) {
	for _, s := range r.shards {
		s.mu.RLock()
		snapshot := make([]*Client, 0)
		for _, set := range s.clients {
			for c := range set {
				snapshot = append(snapshot, c)
			}
		}
		s.mu.RUnlock()

		for _, c := range snapshot {
			fn(c)
		}
	}
}
