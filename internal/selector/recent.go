package selector

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"songquiz/internal/domain"
)

// Recent tracks identifiers used as correct answers across all games in the
// process. It is cleared periodically by Run.
type Recent struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	clock clockwork.Clock
}

// NewRecent creates an empty recently-used set
func NewRecent(clock clockwork.Clock) *Recent {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Recent{
		ids:   make(map[string]struct{}),
		clock: clock,
	}
}

// Mark records id as recently used
func (r *Recent) Mark(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[id] = struct{}{}
}

// Len returns the number of tracked identifiers
func (r *Recent) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// Reset forgets every identifier
func (r *Recent) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = make(map[string]struct{})
}

// Unused returns the items not marked as recently used, in their original order
func (r *Recent) Unused(items []domain.CatalogItem) []domain.CatalogItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	unused := make([]domain.CatalogItem, 0, len(items))
	for _, item := range items {
		if _, ok := r.ids[item.ID]; !ok {
			unused = append(unused, item)
		}
	}
	return unused
}

// Run clears the set every interval until ctx is cancelled
func (r *Recent) Run(ctx context.Context, interval time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			n := r.Len()
			r.Reset()
			log.Debug().Int("cleared", n).Msg("reset recently used catalog items")
		}
	}
}
