package app

import (
	"math/rand/v2"

	"github.com/dkeye/Roulette/internal/domain"
)

// Matchmaker pairs a requester with one other connected identity chosen
// uniformly at random. There is no waiting list: a request that finds no
// candidate is simply dropped, so a long-lived client can starve.
type Matchmaker struct {
	Registry *Registry
	// Pick returns an index in [0, n). Defaults to rand.IntN.
	Pick func(n int) int
}

func NewMatchmaker(reg *Registry) *Matchmaker {
	return &Matchmaker{Registry: reg, Pick: rand.IntN}
}

func (m *Matchmaker) RequestMatch(requester domain.UserID) (domain.UserID, bool) {
	snapshot := m.Registry.Snapshot()
	candidates := snapshot[:0]
	for _, id := range snapshot {
		if id != requester {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[m.Pick(len(candidates))], true
}
