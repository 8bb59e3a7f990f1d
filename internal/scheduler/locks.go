package scheduler

import "sync"

// PlantLocks serializes work per plant in arrival order. Different plants
// never wait on each other.
type PlantLocks struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func NewPlantLocks() *PlantLocks {
	return &PlantLocks{tails: make(map[string]chan struct{})}
}

// Lock blocks until every earlier holder for plantID has released, and
// returns the release func.
func (l *PlantLocks) Lock(plantID string) (unlock func()) {
	done := make(chan struct{})

	l.mu.Lock()
	prev := l.tails[plantID]
	l.tails[plantID] = done
	l.mu.Unlock()

	if prev != nil {
		<-prev
	}

	return func() {
		l.mu.Lock()
		if l.tails[plantID] == done {
			delete(l.tails, plantID)
		}
		l.mu.Unlock()
		close(done)
	}
}
