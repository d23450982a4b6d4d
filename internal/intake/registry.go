package intake

import "sync"

// Registry remembers the fingerprints of accepted submissions so that
// re-uploads of the same content can be flagged.
type Registry struct {
	seen map[string]string // fingerprint -> first name
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		seen: make(map[string]string),
	}
}

// Record stores fingerprint under name. If the fingerprint was already
// recorded, the earlier name is returned and true.
func (r *Registry) Record(fingerprint, name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if first, ok := r.seen[fingerprint]; ok {
		r.hits++
		return first, true
	}
	r.misses++
	r.seen[fingerprint] = name
	return "", false
}

// Len returns the number of distinct fingerprints.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.seen)
}

// Stats returns how many Record calls found a duplicate and how many did not.
func (r *Registry) Stats() (hits, misses int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hits, r.misses
}
