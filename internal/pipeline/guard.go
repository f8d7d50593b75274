package pipeline

import "sync"

// RunGuard serializes sync runs across triggers. Concurrent walks would
// race each other's checkpoints, so whoever fails to acquire simply
// reports the run as busy.
type RunGuard struct {
	mu sync.Mutex
}

func (g *RunGuard) TryAcquire() bool {
	return g.mu.TryLock()
}

func (g *RunGuard) Release() {
	g.mu.Unlock()
}
