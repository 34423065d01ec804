package docstore

import "sync"

type feedKey struct {
	userID     string
	collection string
}

// hub fans confirmed-write notifications out to watchers. Shared by the
// adapters that have no native change feed of their own.
type hub struct {
	mu       sync.Mutex
	nextID   int
	watchers map[feedKey]map[int]ChangeFunc
}

func newHub() *hub {
	return &hub{watchers: map[feedKey]map[int]ChangeFunc{}}
}

func (h *hub) add(key feedKey, fn ChangeFunc) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	if h.watchers[key] == nil {
		h.watchers[key] = map[int]ChangeFunc{}
	}
	h.watchers[key][id] = fn
	return id
}

func (h *hub) remove(key feedKey, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.watchers[key], id)
	if len(h.watchers[key]) == 0 {
		delete(h.watchers, key)
	}
}

func (h *hub) broadcast(key feedKey, docs []Document) {
	h.mu.Lock()
	fns := make([]ChangeFunc, 0, len(h.watchers[key]))
	for _, fn := range h.watchers[key] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(docs)
	}
}

func (h *hub) hasWatchers(key feedKey) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[key]) > 0
}
