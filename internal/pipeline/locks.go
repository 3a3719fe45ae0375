package pipeline

import (
	"sort"
	"sync"
)

// pathLocks provides per-path mutual exclusion for tasks that declare the
// files they write. Tasks writing different paths run concurrently; tasks
// writing the same path serialize.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*sync.Mutex)}
}

func (p *pathLocks) lock(path string) {
	p.mu.Lock()
	l, ok := p.locks[path]
	if !ok {
		l = &sync.Mutex{}
		p.locks[path] = l
	}
	p.mu.Unlock()

	l.Lock()
}

func (p *pathLocks) unlock(path string) {
	p.mu.Lock()
	l, ok := p.locks[path]
	p.mu.Unlock()

	if ok {
		l.Unlock()
	}
}

// lockAll acquires every path's mutex in sorted order. The sort gives a
// global acquisition order, which prevents deadlock between tasks whose
// write sets overlap.
func (p *pathLocks) lockAll(paths []string) {
	if len(paths) == 0 {
		return
	}
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	for _, path := range sorted {
		p.lock(path)
	}
}

// unlockAll releases in reverse sorted order, symmetric with lockAll.
func (p *pathLocks) unlockAll(paths []string) {
	if len(paths) == 0 {
		return
	}
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	for i := len(sorted) - 1; i >= 0; i-- {
		p.unlock(sorted[i])
	}
}
