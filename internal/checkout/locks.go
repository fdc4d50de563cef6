package checkout

import (
	"slices"
	"sync"
)

// productLocks serialises checkouts that touch the same product. Entries are
// dropped once nobody holds or waits on them.
type productLocks struct {
	mu    sync.Mutex
	locks map[int64]*productLock
}

type productLock struct {
	sync.Mutex
	refs int
}

func newProductLocks() *productLocks {
	return &productLocks{locks: make(map[int64]*productLock)}
}

// lock takes every id in ascending order and returns the matching unlock.
func (p *productLocks) lock(ids []int64) func() {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]*productLock, 0, len(sorted))
	for _, id := range sorted {
		l := p.ref(id)
		l.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
			p.unref(sorted[i])
		}
	}
}

func (p *productLocks) ref(id int64) *productLock {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[id]
	if !ok {
		l = &productLock{}
		p.locks[id] = l
	}
	l.refs++
	return l
}

func (p *productLocks) unref(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := p.locks[id]
	l.refs--
	if l.refs == 0 {
		delete(p.locks, id)
	}
}

func (p *productLocks) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
