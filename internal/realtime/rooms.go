package realtime

import "sync"

// Rooms tracks which connections joined which job room. Membership lives
// only as long as the connection does.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[*Client]struct{}
	joined  map[*Client]map[string]struct{}
}

// NewRooms creates an empty room table
func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[*Client]struct{}),
		joined:  make(map[*Client]map[string]struct{}),
	}
}

// Join adds c to the room of jobID
func (r *Rooms) Join(jobID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[jobID]
	if !ok {
		set = make(map[*Client]struct{})
		r.members[jobID] = set
	}
	set[c] = struct{}{}

	rooms, ok := r.joined[c]
	if !ok {
		rooms = make(map[string]struct{})
		r.joined[c] = rooms
	}
	rooms[jobID] = struct{}{}
}

// Leave removes c from the room of jobID and reports whether it was a member
func (r *Rooms) Leave(jobID string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(jobID, c)
}

// LeaveAll removes c from every room it joined
func (r *Rooms) LeaveAll(c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	left := 0
	for jobID := range r.joined[c] {
		if r.leaveLocked(jobID, c) {
			left++
		}
	}
	return left
}

func (r *Rooms) leaveLocked(jobID string, c *Client) bool {
	set, ok := r.members[jobID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}

	delete(set, c)
	if len(set) == 0 {
		delete(r.members, jobID)
	}
	if rooms, ok := r.joined[c]; ok {
		delete(rooms, jobID)
		if len(rooms) == 0 {
			delete(r.joined, c)
		}
	}
	return true
}

// Members returns a snapshot of the room's connections
func (r *Rooms) Members(jobID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.members[jobID]
	result := make([]*Client, 0, len(set))
	for c := range set {
		result = append(result, c)
	}
	return result
}

// Size returns the number of connections in the room
func (r *Rooms) Size(jobID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[jobID])
}
