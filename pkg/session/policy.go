package session

import "time"

// Candidate describes a live session offered to an EvictionPolicy
type Candidate struct {
	ID             string
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// EvictionPolicy picks the session to drop when the store is full
type EvictionPolicy interface {
	SelectVictim(candidates []Candidate) (string, bool)
}

// LRUPolicy evicts the least recently accessed session. Ties go to the
// oldest session, then to the smallest id.
type LRUPolicy struct{}

// SelectVictim implements EvictionPolicy
func (LRUPolicy) SelectVictim(candidates []Candidate) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	victim := candidates[0]
	for _, c := range candidates[1:] {
		if lessRecentlyUsed(c, victim) {
			victim = c
		}
	}
	return victim.ID, true
}

func lessRecentlyUsed(a, b Candidate) bool {
	if !a.LastAccessedAt.Equal(b.LastAccessedAt) {
		return a.LastAccessedAt.Before(b.LastAccessedAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
