package session

import "fmt"

// Redirects maps stale session ids to the ids that replaced them. Chains are
// followed to a fixed point.
//
// Redirects is not safe for concurrent use; the Store guards it.
type Redirects struct {
	next map[string]string
}

// NewRedirects creates an empty redirect table
func NewRedirects() *Redirects {
	return &Redirects{next: make(map[string]string)}
}

// Set redirects from to to. Edges that would close a cycle are rejected.
func (r *Redirects) Set(from, to string) error {
	if from == to {
		return fmt.Errorf("redirect %s points to itself", from)
	}
	if r.Resolve(to) == from {
		return fmt.Errorf("redirect %s -> %s would create a cycle", from, to)
	}
	r.next[from] = to
	return nil
}

// Resolve follows the chain starting at id until it reaches an id with no
// outgoing redirect
func (r *Redirects) Resolve(id string) string {
	current := id
	for hops := 0; hops <= len(r.next); hops++ {
		target, ok := r.next[current]
		if !ok {
			return current
		}
		current = target
	}
	return current
}

// PruneTo removes every redirect whose chain leads to target and returns the
// removed source ids
func (r *Redirects) PruneTo(target string) []string {
	var removed []string
	frontier := map[string]struct{}{target: {}}

	for len(frontier) > 0 {
		nextFrontier := make(map[string]struct{})
		for from, to := range r.next {
			if _, ok := frontier[to]; ok {
				delete(r.next, from)
				removed = append(removed, from)
				nextFrontier[from] = struct{}{}
			}
		}
		frontier = nextFrontier
	}
	return removed
}

// Len returns the number of redirects
func (r *Redirects) Len() int {
	return len(r.next)
}

// Snapshot returns a copy of the table
func (r *Redirects) Snapshot() map[string]string {
	out := make(map[string]string, len(r.next))
	for k, v := range r.next {
		out[k] = v
	}
	return out
}
