package dispatch

import (
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// usedTokens remembers the ID of every accepted token until the token could
// no longer pass verification anyway.
type usedTokens struct {
	mu   sync.Mutex
	seen *ristretto.Cache[string, struct{}]
}

func newUsedTokens() (*usedTokens, error) {
	seen, err := ristretto.NewCache(&ristretto.Config[string, struct{}]{
		NumCounters:        1e6,
		MaxCost:            1e5,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &usedTokens{seen: seen}, nil
}

// consume records id and reports whether it was unused. A token that can not
// be recorded is treated as used.
func (u *usedTokens) consume(id string, ttl time.Duration) bool {
	if id == "" {
		return false
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.seen.Get(id); ok {
		return false
	}
	if !u.seen.SetWithTTL(id, struct{}{}, 1, ttl) {
		return false
	}
	u.seen.Wait()
	return true
}
