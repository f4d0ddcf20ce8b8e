// Package joblock serializes state changes that touch the same job while
// letting different jobs proceed in parallel.
package joblock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker hands out one mutex per job id. Entries are dropped once no goroutine
// holds or waits on them, so the map only grows with in-flight jobs.
type Locker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty Locker
func New() *Locker {
	return &Locker{entries: make(map[string]*entry)}
}

// Lock blocks until the job's mutex is held and returns the matching unlock func
func (l *Locker) Lock(jobID string) func() {
	l.mu.Lock()
	e, ok := l.entries[jobID]
	if !ok {
		e = &entry{}
		l.entries[jobID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.entries, jobID)
			}
			l.mu.Unlock()
		})
	}
}

// Len returns the number of jobs currently locked or waited on
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
