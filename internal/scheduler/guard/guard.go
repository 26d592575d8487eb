// Package guard keeps at most one run of each job alive in the process.
package guard

import (
	"errors"
	"strings"
	"sync"
)

var (
	ErrJobRunning = errors.New("job_already_running")
	ErrEmptyJob   = errors.New("job_name_empty")
)

type Guard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func New() *Guard {
	return &Guard{running: map[string]struct{}{}}
}

// TryEnter claims job or reports ErrJobRunning. The release func is
// idempotent.
func (g *Guard) TryEnter(job string) (func(), error) {
	job = strings.TrimSpace(job)
	if job == "" {
		return nil, ErrEmptyJob
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.running[job]; ok {
		return nil, ErrJobRunning
	}
	g.running[job] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.running, job)
			g.mu.Unlock()
		})
	}, nil
}

// Running reports whether job currently holds the guard.
func (g *Guard) Running(job string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[strings.TrimSpace(job)]
	return ok
}
