package matching

import (
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/example/ridemediator/internal/ride/domain"
)

// DefaultCandidateLimit is how many drivers a passenger is offered.
const DefaultCandidateLimit = 4

// RankFunc orders drivers by preference for a pickup at location. Implementations
// must not mutate the input slice.
type RankFunc func(location domain.Location, drivers []*domain.Driver) []*domain.Driver

// RandomRanker draws a fresh uniform key for every driver on every call and sorts
// by it. It stands in for proximity until a real distance metric is plugged in.
func RandomRanker(seed uint64) RankFunc {
	var mu sync.Mutex
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return func(_ domain.Location, drivers []*domain.Driver) []*domain.Driver {
		type keyed struct {
			key    uint64
			driver *domain.Driver
		}
		mu.Lock()
		keys := make([]keyed, len(drivers))
		for i, d := range drivers {
			keys[i] = keyed{key: rng.Uint64(), driver: d}
		}
		mu.Unlock()

		sort.SliceStable(keys, func(i, j int) bool { return keys[i].key < keys[j].key })
		out := make([]*domain.Driver, len(keys))
		for i, k := range keys {
			out[i] = k.driver
		}
		return out
	}
}

// NameRanker orders drivers by name, giving reproducible candidate lists.
func NameRanker() RankFunc {
	return func(_ domain.Location, drivers []*domain.Driver) []*domain.Driver {
		out := append([]*domain.Driver(nil), drivers...)
		sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out
	}
}

// TopK returns the first k drivers. k <= 0 yields an empty slice.
func TopK(drivers []*domain.Driver, k int) []*domain.Driver {
	if k <= 0 {
		return []*domain.Driver{}
	}
	if len(drivers) > k {
		drivers = drivers[:k]
	}
	return append([]*domain.Driver(nil), drivers...)
}

// Candidates converts ranked drivers into the view handed to passengers.
func Candidates(drivers []*domain.Driver) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, d.Candidate())
	}
	return out
}
