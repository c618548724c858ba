package pending

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/openstud/openstud/core/user"
)

// Registry hands out one Store per user. Stores idle for longer than the TTL are dropped,
// as are the least recently used ones once size is reached.
type Registry struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *Store]
}

func NewRegistry(size int, ttl time.Duration) *Registry {
	return &Registry{sessions: expirable.NewLRU[string, *Store](size, nil, ttl)}
}

// Store returns the Store of usr, creating it if needed, and refreshes its TTL.
func (r *Registry) Store(usr user.User) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions.Get(usr.ID)
	if !ok {
		s = NewStore()
	}
	r.sessions.Add(usr.ID, s)
	return s
}

// Peek returns the Store of usr without creating it or refreshing its TTL.
func (r *Registry) Peek(usr user.User) (*Store, bool) {
	return r.sessions.Peek(usr.ID)
}

// Remove drops the Store of usr, e.g. when the user is deleted.
func (r *Registry) Remove(userID string) {
	r.sessions.Remove(userID)
}

func (r *Registry) Len() int {
	return r.sessions.Len()
}
