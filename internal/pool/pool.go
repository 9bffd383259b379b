// Package pool computes the candidate affirmation pool and picks from it.
package pool

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/models"
)

// Candidates builds the pool for the given filter. It never returns an empty slice
// as long as builtins is non-empty: when nothing matches, the unfiltered built-ins are used.
func Candidates(builtins []models.Affirmation, personal []string, enabled models.EnabledCategories, filter string) []models.Affirmation {
	if filter == "" {
		filter = constants.CategoryAll
	}

	pool := make([]models.Affirmation, 0, len(builtins)+len(personal))
	for _, a := range builtins {
		if enabled.Allows(a.Category) {
			pool = append(pool, a)
		}
	}
	if filter == constants.CategoryAll || filter == constants.CategoryPersonal {
		pool = append(pool, models.PersonalAffirmations(personal)...)
	}

	if filter != constants.CategoryAll {
		filtered := pool[:0]
		for _, a := range pool {
			if a.Category == filter {
				filtered = append(filtered, a)
			}
		}
		pool = filtered
	}

	if len(pool) == 0 {
		return builtins
	}
	return pool
}

// Selector picks uniformly at random, avoiding an immediate repeat when possible.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSelector(rng *rand.Rand) *Selector {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &Selector{rng: rng}
}

// Pick returns an entry from pool that differs from previous whenever pool has more than one entry.
// ok is false only for an empty pool.
func (s *Selector) Pick(pool []models.Affirmation, previous *models.Affirmation) (models.Affirmation, bool) {
	if len(pool) == 0 {
		return models.Affirmation{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(pool) == 1 || previous == nil || !hasAlternative(pool, *previous) {
		return pool[s.rng.IntN(len(pool))], true
	}
	for {
		next := pool[s.rng.IntN(len(pool))]
		if next != *previous {
			return next, true
		}
	}
}

// hasAlternative guards the retry loop against a pool made only of duplicates of previous.
func hasAlternative(pool []models.Affirmation, previous models.Affirmation) bool {
	for _, a := range pool {
		if a != previous {
			return true
		}
	}
	return false
}
