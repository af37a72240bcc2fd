package utils

import (
	"context"
	"sync"
	"time"
)

var (
	statesMu sync.Mutex
	states   = map[string]time.Time{}
)

// SaveState records an OAuth state nonce for later single-use redemption.
// Redis makes the nonce visible across instances; the local map covers
// single-instance deployments without Redis.
func SaveState(state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if rc.Set(ctx, "oauth:state:"+state, "1", ttl).Err() == nil {
			return
		}
	}

	statesMu.Lock()
	states[state] = time.Now().Add(ttl)
	statesMu.Unlock()
}

// ConsumeState redeems a state nonce exactly once, reporting whether it was
// valid and unexpired.
func ConsumeState(state string) bool {
	if state == "" {
		return false
	}

	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if v, err := rc.GetDel(ctx, "oauth:state:"+state).Result(); err == nil {
			return v != ""
		}
	}

	statesMu.Lock()
	deadline, ok := states[state]
	delete(states, state)
	statesMu.Unlock()

	return ok && time.Now().Before(deadline)
}
